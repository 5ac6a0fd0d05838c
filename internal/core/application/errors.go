package application

import "errors"

// Error kinds surfaced to callers of the coordinator entry points. A caller
// only ever observes Done (with a broadcast txid) or exactly one of these.
var (
	// ErrTransport is thrown when the relay or the chain backend is
	// unreachable, or the pending operation timed out.
	ErrTransport = errors.New("transport failure")
	// ErrValidation is thrown when the local peer's own inputs fail validation
	// before any event is published.
	ErrValidation = errors.New("validation failure")
	// ErrProtocolViolation is thrown for session-fatal protocol failures:
	// draft-hash mismatch, invalid partial signature, tampered frozen set.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrDeadlineExceeded is thrown when the pool max duration elapsed before
	// the session reached Done.
	ErrDeadlineExceeded = errors.New("pool deadline exceeded")
	// ErrCanceled is thrown when the caller canceled the session.
	ErrCanceled = errors.New("session canceled by caller")
	// ErrPoolNotFound is thrown when joining a pool whose advertisement has
	// not been observed.
	ErrPoolNotFound = errors.New("pool advertisement not found")
	// ErrPolicyRejected is thrown when an advertised pool violates the
	// caller's own policy (fee ceiling, denomination).
	ErrPolicyRejected = errors.New("pool rejected by local policy")
)
