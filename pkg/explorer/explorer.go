package explorer

import "github.com/shopspring/decimal"

// Utxo represents an unspent transaction output on the bitcoin chain.
type Utxo interface {
	Hash() string
	Index() uint32
	Value() uint64
	Script() []byte
	Address() string
	IsConfirmed() bool
}

// OutpointStatus is the resolved chain state of a single outpoint, used to
// validate peer commitments.
type OutpointStatus struct {
	// Value of the output in satoshis.
	Value uint64
	// Script is the output's scriptPubKey.
	Script []byte
	// Spent reports whether the output has already been spent.
	Spent bool
	// Confirmed reports whether the funding tx is included in a block.
	Confirmed bool
}

// Service is the representation of a block-chain query backend allowing to
// resolve unspents, estimate fees and broadcast transactions. Pure
// request/response; retries and breaker logic live in the implementation.
type Service interface {
	// GetUnspentsForAddresses fetches the utxos of the given addresses.
	GetUnspentsForAddresses(addresses []string) ([]Utxo, error)
	// GetOutpointStatus resolves value, script and spend state of an outpoint.
	// Returns nil if the funding transaction is unknown.
	GetOutpointStatus(txid string, vout uint32) (*OutpointStatus, error)
	// EstimateFeeRate returns the estimated fee rate in sats/vB for the given
	// confirmation target.
	EstimateFeeRate(blocksTarget int) (decimal.Decimal, error)
	// BroadcastTransaction attempts to add the given tx in hex format to the
	// mempool and returns its tx hash.
	BroadcastTransaction(txHex string) (string, error)
}
