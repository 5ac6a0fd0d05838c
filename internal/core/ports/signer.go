package ports

import "github.com/btcsuite/btcd/wire"

// Signer produces the witness for one input of the canonical draft. The key
// material never leaves the implementation.
type Signer interface {
	// SignInput signs the input at the given index of tx, spending a prevout
	// of the given value and script, and returns the final witness.
	SignInput(tx *wire.MsgTx, index int, value uint64, prevScript []byte) (wire.TxWitness, error)
}
