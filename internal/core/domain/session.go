package domain

import (
	"time"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
)

// Session is one participant's projection of a pool, recomputed independently
// from the observed event stream. There is no authoritative shared state:
// the protocol is safe as long as every honest participant applies the same
// deterministic admission and ordering rules to the same event history.
type Session struct {
	ID        string
	Pool      Pool
	Initiator bool
	Status    int
	// Commitments is the ordered admitted set, unique by outpoint and by
	// ephemeral key. Ordering is by sequence number, not submission time.
	Commitments []Commitment
	DraftHash   string
	// Signatures maps a commitment sequence to the verified witness.
	Signatures  map[int]wire.TxWitness
	TxID        string
	AbortReason string
	CreatedAt   int64
	Deadline    int64

	draft *Draft
}

// NewSession returns a session for the given pool. Initiator sessions start
// in Advertising, peer sessions directly in Collecting.
func NewSession(pool Pool, initiator bool, now time.Time) *Session {
	status := SessionStatusCollecting
	if initiator {
		status = SessionStatusAdvertising
	}
	return &Session{
		ID:          uuid.New().String(),
		Pool:        pool,
		Initiator:   initiator,
		Status:      status,
		Signatures:  make(map[int]wire.TxWitness),
		CreatedAt:   now.Unix(),
		Deadline:    pool.Timeout,
	}
}

func (s *Session) config() PoolConfig {
	maxDuration := s.Deadline - s.CreatedAt
	if maxDuration <= 0 {
		maxDuration = 1
	}
	return PoolConfig{
		Denomination: s.Pool.Denomination,
		Fee:          s.Pool.Fee,
		MaxDuration:  uint64(maxDuration),
		Peers:        s.Pool.Peers,
		Network:      s.Pool.Network,
	}
}

// MarkAdvertised brings an initiator session from Advertising to Collecting
// once the advertisement has been published to the relay.
func (s *Session) MarkAdvertised() error {
	if s.Status != SessionStatusAdvertising {
		return ErrSessionNotCollecting
	}
	s.Status = SessionStatusCollecting
	return nil
}

// Admit validates a commitment against the pool parameters and the running
// admitted set, and appends it with the next sequence number. A false return
// with a non-nil error reports why the commitment was dropped: drops are
// never session-fatal, so a hostile peer cannot use admission as a
// denial-of-service oracle. The caller is expected to log the reason.
func (s *Session) Admit(c Commitment) (bool, error) {
	if s.IsTerminal() || s.Status > SessionStatusCollecting {
		// Commitment set is frozen or gone, late commitments are ignored.
		return false, ErrSessionNotCollecting
	}
	if s.Status < SessionStatusCollecting {
		return false, ErrSessionNotCollecting
	}
	if err := c.Validate(s.config()); err != nil {
		return false, err
	}
	for _, admitted := range s.Commitments {
		if admitted.OutpointKey() == c.OutpointKey() {
			return false, ErrDuplicateOutpoint
		}
		if admitted.PublicKey == c.PublicKey {
			return false, ErrDuplicateKey
		}
	}
	c.Sequence = len(s.Commitments)
	s.Commitments = append(s.Commitments, c)
	return true, nil
}

// IsFull returns whether the admitted set reached the target peer count.
func (s *Session) IsFull() bool {
	return len(s.Commitments) == s.Pool.Peers
}

// Freeze locks the commitment set the moment it reaches the target count and
// derives the canonical draft. After this point the set is immutable: no
// additions, no removals except by full abort.
func (s *Session) Freeze() error {
	if s.IsTerminal() {
		return ErrSessionTerminal
	}
	if s.Status != SessionStatusCollecting || !s.IsFull() {
		return ErrSessionNotCollecting
	}
	draft, err := BuildDraft(s.config(), s.Commitments)
	if err != nil {
		s.Abort(err.Error())
		return err
	}
	s.draft = draft
	s.DraftHash = draft.Hash
	s.Status = SessionStatusFrozen
	return nil
}

// VerifyFreeze checks an announced draft hash against the locally recomputed
// one before any signature is produced. A mismatch means a peer is trying to
// make the pool sign a tampered draft: the session aborts.
func (s *Session) VerifyFreeze(announcedHash string) error {
	if s.IsTerminal() {
		return ErrSessionTerminal
	}
	if s.Status != SessionStatusFrozen {
		return ErrSessionNotFrozen
	}
	if announcedHash != s.DraftHash {
		s.Abort(ErrDraftHashMismatch.Error())
		return ErrDraftHashMismatch
	}
	s.Status = SessionStatusSigning
	return nil
}

// CommitmentBySequence returns the admitted commitment with the given
// sequence number.
func (s *Session) CommitmentBySequence(seq int) (Commitment, bool) {
	if seq < 0 || seq >= len(s.Commitments) {
		return Commitment{}, false
	}
	return s.Commitments[seq], true
}

// CommitmentByKey returns the admitted commitment published under the given
// ephemeral key. Peers may observe commitments in different relative orders,
// so cross-participant references resolve by key, never by local sequence.
func (s *Session) CommitmentByKey(publicKey string) (Commitment, bool) {
	for _, c := range s.Commitments {
		if c.PublicKey == publicKey {
			return c, true
		}
	}
	return Commitment{}, false
}

// RegisterSignature verifies a peer's partial signature against its own input
// and records it. Replaying an already registered signature is idempotent. A
// signature that fails script verification is a protocol violation and aborts
// the session.
func (s *Session) RegisterSignature(seq int, witness wire.TxWitness) (bool, error) {
	if s.IsTerminal() {
		return false, nil
	}
	if s.Status != SessionStatusSigning {
		return false, ErrSessionNotFrozen
	}
	c, ok := s.CommitmentBySequence(seq)
	if !ok {
		return false, ErrUnknownSequence
	}
	if _, ok := s.Signatures[seq]; ok {
		return false, nil
	}
	if err := s.verifyWitness(c, witness); err != nil {
		s.Abort(ErrSignatureInvalid.Error())
		return false, ErrSignatureInvalid
	}
	s.Signatures[seq] = witness
	return true, nil
}

// HasAllSignatures returns whether a verified signature has been collected
// for every admitted commitment.
func (s *Session) HasAllSignatures() bool {
	return len(s.Signatures) == len(s.Commitments) && s.IsFull()
}

// FinalTx assembles the fully signed transaction from the draft and the
// collected witnesses and moves the session to Broadcasting.
func (s *Session) FinalTx() (*wire.MsgTx, error) {
	if s.Status != SessionStatusSigning {
		return nil, ErrSessionNotFrozen
	}
	if !s.HasAllSignatures() {
		return nil, ErrSessionSignaturesMissing
	}
	tx := s.draft.UnsignedTx.Copy()
	for seq, witness := range s.Signatures {
		c := s.Commitments[seq]
		idx, ok := s.draft.InputIndex(c.OutPoint())
		if !ok {
			return nil, ErrUnknownSequence
		}
		tx.TxIn[idx].Witness = witness
	}
	s.Status = SessionStatusBroadcasting
	return tx, nil
}

// Complete records the broadcast txid and moves the session to Done, the only
// successful terminal status.
func (s *Session) Complete(txid string) error {
	if s.Status != SessionStatusBroadcasting {
		return ErrSessionNotFrozen
	}
	s.TxID = txid
	s.Status = SessionStatusDone
	return nil
}

// Expire moves the session to Expired if the pool deadline elapsed before
// Done. It applies from any non-terminal status: a session must never block
// indefinitely.
func (s *Session) Expire(now time.Time) bool {
	if s.IsTerminal() {
		return false
	}
	if now.Unix() < s.Deadline {
		return false
	}
	s.Status = SessionStatusExpired
	return true
}

// Abort moves the session to Aborted from any non-terminal status.
func (s *Session) Abort(reason string) {
	if s.IsTerminal() {
		return
	}
	s.AbortReason = reason
	s.Status = SessionStatusAborted
}

// IsTerminal returns whether the session reached Done, Aborted or Expired.
func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusDone ||
		s.Status == SessionStatusAborted ||
		s.Status == SessionStatusExpired
}

// IsDone returns whether the session is in the successful terminal status.
func (s *Session) IsDone() bool {
	return s.Status == SessionStatusDone
}

// IsFrozen returns whether the commitment set is locked.
func (s *Session) IsFrozen() bool {
	return s.Status >= SessionStatusFrozen && s.Status != SessionStatusAborted &&
		s.Status != SessionStatusExpired
}

// Draft returns the canonical draft derived at freeze time, or nil before it.
func (s *Session) Draft() *Draft {
	return s.draft
}

// verifyWitness runs the script engine over the draft with the candidate
// witness applied to the peer's input. The prevout script and value come from
// the admitted commitment, resolved from chain data at admission time.
func (s *Session) verifyWitness(c Commitment, witness wire.TxWitness) error {
	idx, ok := s.draft.InputIndex(c.OutPoint())
	if !ok {
		return ErrUnknownSequence
	}
	prevScript, err := c.prevScript()
	if err != nil {
		return err
	}
	tx := s.draft.UnsignedTx.Copy()
	tx.TxIn[idx].Witness = witness

	fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, int64(c.Value))
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	vm, err := txscript.NewEngine(
		prevScript, tx, idx, txscript.StandardVerifyFlags, nil, sigHashes,
		int64(c.Value), fetcher,
	)
	if err != nil {
		return err
	}
	return vm.Execute()
}
