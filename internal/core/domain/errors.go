package domain

import "errors"

var (
	// ErrPoolInvalidDenomination is thrown when a pool is created with a zero denomination.
	ErrPoolInvalidDenomination = errors.New("denomination must be a positive amount in satoshis")
	// ErrPoolInvalidPeers is thrown when a pool targets less than 2 peers.
	ErrPoolInvalidPeers = errors.New("pool must target at least 2 peers")
	// ErrPoolInvalidDuration is thrown when a pool has a null max duration.
	ErrPoolInvalidDuration = errors.New("pool max duration must not be null")
	// ErrPoolInvalidNetwork ...
	ErrPoolInvalidNetwork = errors.New("pool network is unknown")
	// ErrPoolInvalidID is thrown when an advertisement carries an id that does not look like a sha256 digest.
	ErrPoolInvalidID = errors.New("pool id must be a 64-char hex string")

	// ErrCommitmentInvalidOutpoint ...
	ErrCommitmentInvalidOutpoint = errors.New("commitment outpoint is malformed")
	// ErrCommitmentInvalidValue is thrown when the committed input does not fund
	// exactly denomination plus its fee share.
	ErrCommitmentInvalidValue = errors.New("commitment value must equal denomination plus fee share")
	// ErrCommitmentInvalidScript is thrown for any output that is not a segwit v0 program.
	ErrCommitmentInvalidScript = errors.New("commitment output must be a segwit v0 script")
	// ErrCommitmentInvalidKey ...
	ErrCommitmentInvalidKey = errors.New("commitment ephemeral key is malformed")

	// ErrSessionNotCollecting is thrown when trying to admit a commitment on a
	// session whose commitment set is already frozen or terminal.
	ErrSessionNotCollecting = errors.New("session is not collecting commitments")
	// ErrSessionNotFrozen is thrown when an operation requires a frozen commitment set.
	ErrSessionNotFrozen = errors.New("session commitment set is not frozen")
	// ErrSessionTerminal is thrown when trying to transition a session that
	// already reached a terminal status.
	ErrSessionTerminal = errors.New("session already reached a terminal status")
	// ErrSessionSignaturesMissing ...
	ErrSessionSignaturesMissing = errors.New("not all partial signatures have been collected")

	// ErrDraftHashMismatch is thrown when the announced draft hash differs from
	// the locally recomputed one. Always session-fatal.
	ErrDraftHashMismatch = errors.New("announced draft hash does not match the local draft")
	// ErrDuplicateOutpoint ...
	ErrDuplicateOutpoint = errors.New("outpoint already committed to the pool")
	// ErrDuplicateKey ...
	ErrDuplicateKey = errors.New("ephemeral key already committed to the pool")
	// ErrSignatureInvalid is thrown when a partial signature does not verify
	// against its input. Always session-fatal.
	ErrSignatureInvalid = errors.New("partial signature does not verify against its input")
	// ErrUnknownSequence is thrown for a signature referencing a sequence number
	// outside the frozen commitment set.
	ErrUnknownSequence = errors.New("signature references an unknown commitment sequence")

	// ErrDraftWrongCommitmentCount ...
	ErrDraftWrongCommitmentCount = errors.New("commitment set size does not match the pool target")
	// ErrDraftOverpayingInput is thrown when an input overpays its fee share.
	// The excess would be a privacy leak, so the whole set is rejected.
	ErrDraftOverpayingInput = errors.New("input overpays its fee share")
)
