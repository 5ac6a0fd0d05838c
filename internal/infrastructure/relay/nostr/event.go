package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Event is a NIP-01 relay event. The id is the sha256 of the canonical
// serialization and the signature is BIP340 over the id.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// ErrInvalidEvent is returned when an event's id or signature does not check
// out against its content.
var ErrInvalidEvent = errors.New("invalid event id or signature")

// GenerateKey returns a fresh ephemeral keypair and the hex-encoded x-only
// public key used as the event author.
func GenerateKey() (*btcec.PrivateKey, string, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, "", err
	}
	return privKey, hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey())), nil
}

// NewEvent builds, identifies and signs an event with the given key.
func NewEvent(
	privKey *btcec.PrivateKey, kind int, tags [][]string, content string,
	createdAt time.Time,
) (*Event, error) {
	if tags == nil {
		tags = [][]string{}
	}
	ev := &Event{
		PubKey:    hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey())),
		CreatedAt: createdAt.Unix(),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	id, err := ev.computeID()
	if err != nil {
		return nil, err
	}
	ev.ID = hex.EncodeToString(id)

	sig, err := schnorr.Sign(privKey, id)
	if err != nil {
		return nil, err
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return ev, nil
}

// Verify checks that the event id matches the canonical serialization and
// that the signature is valid for the author key.
func (e *Event) Verify() error {
	id, err := e.computeID()
	if err != nil {
		return err
	}
	if hex.EncodeToString(id) != e.ID {
		return fmt.Errorf("%w: id mismatch", ErrInvalidEvent)
	}
	rawPubKey, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err)
	}
	pubKey, err := schnorr.ParsePubKey(rawPubKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err)
	}
	rawSig, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err)
	}
	sig, err := schnorr.ParseSignature(rawSig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err)
	}
	if !sig.Verify(id, pubKey) {
		return ErrInvalidEvent
	}
	return nil
}

// computeID serializes [0, pubkey, created_at, kind, tags, content] without
// HTML escaping and hashes it, per NIP-01.
func (e *Event) computeID() ([]byte, error) {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]interface{}{
		0, e.PubKey, e.CreatedAt, e.Kind, tags, e.Content,
	}); err != nil {
		return nil, err
	}
	serialized := bytes.TrimRight(buf.Bytes(), "\n")
	sum := sha256.Sum256(serialized)
	return sum[:], nil
}
