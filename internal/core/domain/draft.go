package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/btcsuite/btcd/wire"
)

const (
	draftTxVersion = 2
	// draftSequence opts every input into RBF.
	draftSequence = wire.MaxTxInSequenceNum - 2
)

// Draft is the canonical unsigned transaction derived from a frozen
// commitment set. Given the same set, every participant computes a
// bit-identical draft and therefore the same hash.
type Draft struct {
	UnsignedTx *wire.MsgTx
	// Hash is the txid of the unsigned transaction, the out-of-band agreement
	// token exchanged in freeze announcements.
	Hash string

	inputIndex map[wire.OutPoint]int
}

// BuildDraft assembles the canonical unsigned transaction for the given
// frozen commitment set. It is a pure function: no chain access, no clock.
//
// Determinism rules of protocol version 1:
//   - inputs are ordered by ascending outpoint (txid string, then vout);
//   - outputs are ordered by a shuffle keyed on the hash of the whole
//     commitment set, so no participant controls output position.
func BuildDraft(cfg PoolConfig, commitments []Commitment) (*Draft, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(commitments) != cfg.Peers {
		return nil, ErrDraftWrongCommitmentCount
	}

	expectedValue := cfg.Denomination + cfg.FeeShare()
	seen := make(map[string]struct{}, len(commitments))
	keys := make(map[string]struct{}, len(commitments))
	for _, c := range commitments {
		if err := c.Validate(cfg); err != nil {
			return nil, err
		}
		if c.Value > expectedValue {
			return nil, ErrDraftOverpayingInput
		}
		if _, ok := seen[c.OutpointKey()]; ok {
			return nil, ErrDuplicateOutpoint
		}
		seen[c.OutpointKey()] = struct{}{}
		if _, ok := keys[c.PublicKey]; ok {
			return nil, ErrDuplicateKey
		}
		keys[c.PublicKey] = struct{}{}
	}

	ordered := make([]Commitment, len(commitments))
	copy(ordered, commitments)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Txid != ordered[j].Txid {
			return ordered[i].Txid < ordered[j].Txid
		}
		return ordered[i].Vout < ordered[j].Vout
	})

	seed := shuffleSeed(ordered)

	tx := wire.NewMsgTx(draftTxVersion)
	inputIndex := make(map[wire.OutPoint]int, len(ordered))
	for i, c := range ordered {
		op := c.OutPoint()
		txIn := wire.NewTxIn(&op, nil, nil)
		txIn.Sequence = draftSequence
		tx.AddTxIn(txIn)
		inputIndex[op] = i
	}

	outputs := make([][]byte, 0, len(ordered))
	for _, c := range ordered {
		script, _ := hex.DecodeString(c.OutputScript)
		outputs = append(outputs, script)
	}
	sort.Slice(outputs, func(i, j int) bool {
		return bytes.Compare(shuffleKey(seed, outputs[i]), shuffleKey(seed, outputs[j])) < 0
	})
	for _, script := range outputs {
		tx.AddTxOut(wire.NewTxOut(int64(cfg.Denomination), script))
	}

	return &Draft{
		UnsignedTx: tx,
		Hash:       tx.TxHash().String(),
		inputIndex: inputIndex,
	}, nil
}

// InputIndex returns the index of the given outpoint in the draft inputs.
func (d *Draft) InputIndex(op wire.OutPoint) (int, bool) {
	i, ok := d.inputIndex[op]
	return i, ok
}

// shuffleSeed hashes the whole commitment set (sorted by outpoint) so that the
// output ordering depends on every peer's contribution.
func shuffleSeed(ordered []Commitment) []byte {
	h := sha256.New()
	for _, c := range ordered {
		op := c.OutPoint()
		h.Write(op.Hash[:])
		var buf [8]byte
		binary.BigEndian.PutUint32(buf[:4], op.Index)
		h.Write(buf[:4])
		binary.BigEndian.PutUint64(buf[:], c.Value)
		h.Write(buf[:])
		script, _ := hex.DecodeString(c.OutputScript)
		h.Write(script)
		key, _ := hex.DecodeString(c.PublicKey)
		h.Write(key)
	}
	return h.Sum(nil)
}

func shuffleKey(seed, script []byte) []byte {
	h := sha256.New()
	h.Write(seed)
	h.Write(script)
	return h.Sum(nil)
}
