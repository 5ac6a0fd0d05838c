package domain

const (
	// SessionStatusAdvertising is the initial status of an initiator session,
	// waiting for the advertisement to be published.
	SessionStatusAdvertising = iota
	// SessionStatusCollecting means commitments are being admitted, below target.
	SessionStatusCollecting
	// SessionStatusFrozen means the commitment set is locked and the draft built.
	SessionStatusFrozen
	// SessionStatusSigning means partial signatures are being collected.
	SessionStatusSigning
	// SessionStatusBroadcasting means all signatures verified, submitting the tx.
	SessionStatusBroadcasting
	// SessionStatusDone is the only successful terminal status.
	SessionStatusDone
	// SessionStatusAborted is the terminal status of an unrecoverable failure.
	SessionStatusAborted
	// SessionStatusExpired is the terminal status reached when the pool
	// deadline elapses before Done.
	SessionStatusExpired
)

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkSignet  = "signet"
	NetworkRegtest = "regtest"
)

// ProtocolVersion is the wire version of pool messages. The fee-split rule
// (per-peer share = ceil(fee/peers)) is part of this version.
const ProtocolVersion = "1"
