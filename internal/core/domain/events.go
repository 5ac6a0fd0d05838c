package domain

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Pool message types of protocol version 1. Messages travel as relay event
// payloads tagged with the pool id; every participant parses the same stream
// and reduces it independently.
const (
	MsgTypeCommitment = "commitment"
	MsgTypeFreeze     = "freeze"
	MsgTypeSignature  = "signature"
)

// ErrUnknownMessageType is returned for envelopes whose type tag is not part
// of protocol version 1. Such messages are skipped, never fatal.
var ErrUnknownMessageType = errors.New("unknown pool message type")

// ErrUnsupportedVersion ...
var ErrUnsupportedVersion = errors.New("unsupported pool message version")

// CommitmentMsg is the wire form of a peer's contribution.
type CommitmentMsg struct {
	Txid         string `json:"txid"`
	Vout         uint32 `json:"vout"`
	Value        uint64 `json:"value"`
	OutputScript string `json:"output"`
	PublicKey    string `json:"npub"`
}

// FreezeMsg announces the canonical hash of the draft derived from the frozen
// commitment set, so all participants agree out-of-band on what they sign.
type FreezeMsg struct {
	DraftHash string `json:"draft_hash"`
}

// SignatureMsg carries one peer's partial signature: the witness for the
// input admitted under the given sequence number.
type SignatureMsg struct {
	Sequence  int      `json:"sequence"`
	Witness   []string `json:"witness"`
	PublicKey string   `json:"npub"`
}

// PoolMessage is the tagged variant decoded from an event payload. Exactly
// one of the typed fields is set, according to Type.
type PoolMessage struct {
	Version string `json:"version"`
	Type    string `json:"type"`

	Commitment *CommitmentMsg `json:"commitment,omitempty"`
	Freeze     *FreezeMsg     `json:"freeze,omitempty"`
	Signature  *SignatureMsg  `json:"signature,omitempty"`
}

// NewCommitmentMsg wraps a commitment into a versioned envelope.
func NewCommitmentMsg(c Commitment) PoolMessage {
	return PoolMessage{
		Version: ProtocolVersion,
		Type:    MsgTypeCommitment,
		Commitment: &CommitmentMsg{
			Txid:         c.Txid,
			Vout:         c.Vout,
			Value:        c.Value,
			OutputScript: c.OutputScript,
			PublicKey:    c.PublicKey,
		},
	}
}

// NewFreezeMsg ...
func NewFreezeMsg(draftHash string) PoolMessage {
	return PoolMessage{
		Version: ProtocolVersion,
		Type:    MsgTypeFreeze,
		Freeze:  &FreezeMsg{DraftHash: draftHash},
	}
}

// NewSignatureMsg encodes the witness of the commitment admitted with the
// given sequence number.
func NewSignatureMsg(seq int, witness [][]byte, publicKey string) PoolMessage {
	items := make([]string, 0, len(witness))
	for _, item := range witness {
		items = append(items, hex.EncodeToString(item))
	}
	return PoolMessage{
		Version: ProtocolVersion,
		Type:    MsgTypeSignature,
		Signature: &SignatureMsg{
			Sequence:  seq,
			Witness:   items,
			PublicKey: publicKey,
		},
	}
}

// Encode serializes the message to its wire form.
func (m PoolMessage) Encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParsePoolMessage decodes and validates an event payload at the protocol
// boundary. Unknown or malformed payloads yield an error and are expected to
// be skipped by the caller: a hostile or buggy peer must not be able to crash
// honest participants.
func ParsePoolMessage(payload string) (PoolMessage, error) {
	var m PoolMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return PoolMessage{}, fmt.Errorf("malformed pool message: %w", err)
	}
	if m.Version != ProtocolVersion {
		return PoolMessage{}, ErrUnsupportedVersion
	}
	switch m.Type {
	case MsgTypeCommitment:
		if m.Commitment == nil {
			return PoolMessage{}, fmt.Errorf("%s message without body", m.Type)
		}
	case MsgTypeFreeze:
		if m.Freeze == nil || len(m.Freeze.DraftHash) != 64 {
			return PoolMessage{}, fmt.Errorf("%s message without a valid draft hash", MsgTypeFreeze)
		}
	case MsgTypeSignature:
		if m.Signature == nil || len(m.Signature.Witness) == 0 {
			return PoolMessage{}, fmt.Errorf("%s message without a witness", MsgTypeSignature)
		}
		if m.Signature.Sequence < 0 {
			return PoolMessage{}, fmt.Errorf("%s message with a negative sequence", MsgTypeSignature)
		}
	default:
		return PoolMessage{}, ErrUnknownMessageType
	}
	return m, nil
}

// ToCommitment converts the wire form into a domain commitment. The sequence
// number is assigned at admission, not taken from the wire.
func (m CommitmentMsg) ToCommitment() Commitment {
	return Commitment{
		PublicKey:    m.PublicKey,
		Txid:         m.Txid,
		Vout:         m.Vout,
		Value:        m.Value,
		OutputScript: m.OutputScript,
	}
}

// DecodeWitness converts the hex-encoded witness items into their raw form.
func (m SignatureMsg) DecodeWitness() ([][]byte, error) {
	witness := make([][]byte, 0, len(m.Witness))
	for _, item := range m.Witness {
		raw, err := hex.DecodeString(item)
		if err != nil {
			return nil, fmt.Errorf("malformed witness item: %w", err)
		}
		witness = append(witness, raw)
	}
	return witness, nil
}
