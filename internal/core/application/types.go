package application

// PeerConfig carries this participant's contribution to a pool and its local
// join policy. It never leaves the process.
type PeerConfig struct {
	// InputTxid and InputVout reference the coin to mix. The coin must fund
	// exactly denomination plus the per-peer fee share.
	InputTxid string
	InputVout uint32
	// OutputAddress is the destination address, a segwit v0 address of the
	// pool's network.
	OutputAddress string

	// MaxFee is the highest total pool fee in satoshis this peer accepts when
	// joining. Zero means no ceiling.
	MaxFee uint64
	// Denomination, if non-zero, restricts joining to pools of exactly this
	// denomination in satoshis.
	Denomination uint64
}
