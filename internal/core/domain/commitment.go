package domain

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Commitment is one peer's binding contribution to a pool: exactly one input
// and one output of the pool denomination. It is immutable once admitted.
type Commitment struct {
	// Sequence is the admission order assigned by the local projection. It is
	// not part of the wire payload.
	Sequence int
	// PublicKey is the peer's ephemeral relay key, hex-encoded x-only key.
	PublicKey string
	// Txid and Vout reference the committed unspent output.
	Txid string
	Vout uint32
	// Value is the committed input value in satoshis. It must equal the pool
	// denomination plus the peer's fee share.
	Value uint64
	// OutputScript is the destination script, hex-encoded segwit v0 program.
	OutputScript string
	// InputScript is the script of the committed prevout, resolved from chain
	// data at admission time. Local-only, never transmitted.
	InputScript string
}

// Validate checks the commitment's own content against the pool parameters.
// It does not check chain state: resolving whether the outpoint is unspent is
// up to the caller.
func (c Commitment) Validate(cfg PoolConfig) error {
	if _, err := chainhash.NewHashFromStr(c.Txid); err != nil {
		return ErrCommitmentInvalidOutpoint
	}
	if len(c.PublicKey) != 64 {
		return ErrCommitmentInvalidKey
	}
	if _, err := hex.DecodeString(c.PublicKey); err != nil {
		return ErrCommitmentInvalidKey
	}
	script, err := hex.DecodeString(c.OutputScript)
	if err != nil {
		return ErrCommitmentInvalidScript
	}
	if !isSegwitV0(script) {
		return ErrCommitmentInvalidScript
	}
	if c.Value != cfg.Denomination+cfg.FeeShare() {
		return ErrCommitmentInvalidValue
	}
	return nil
}

// OutPoint returns the committed outpoint as a wire type. The commitment must
// have been validated beforehand.
func (c Commitment) OutPoint() wire.OutPoint {
	hash, _ := chainhash.NewHashFromStr(c.Txid)
	return wire.OutPoint{Hash: *hash, Index: c.Vout}
}

// OutpointKey returns the canonical txid:vout form used for deduplication.
func (c Commitment) OutpointKey() string {
	return c.OutPoint().String()
}

func (c Commitment) prevScript() ([]byte, error) {
	script, err := hex.DecodeString(c.InputScript)
	if err != nil || len(script) == 0 {
		return nil, ErrCommitmentInvalidScript
	}
	return script, nil
}

func isSegwitV0(script []byte) bool {
	return txscript.IsPayToWitnessPubKeyHash(script) ||
		txscript.IsPayToWitnessScriptHash(script)
}
