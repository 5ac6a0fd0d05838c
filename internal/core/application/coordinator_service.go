package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
	"github.com/joinstr-network/joinstr-daemon/internal/core/ports"
	"github.com/joinstr-network/joinstr-daemon/pkg/explorer"
	"github.com/joinstr-network/joinstr-daemon/pkg/wallet"
)

// Service wires the pool protocol together: discovery, admission, freeze,
// signing and broadcast. One Service may drive multiple sessions
// concurrently; sessions share nothing mutable.
type Service struct {
	relay       ports.RelayBus
	explorerSvc explorer.Service
	signer      ports.Signer
	network     string
	sessionRepo domain.SessionRepository
	poolRepo    domain.PoolRepository

	now func() time.Time
}

// NewService returns a coordinator service operating on the given network.
func NewService(
	relay ports.RelayBus,
	explorerSvc explorer.Service,
	signer ports.Signer,
	network string,
	sessionRepo domain.SessionRepository,
	poolRepo domain.PoolRepository,
) (*Service, error) {
	if relay == nil {
		return nil, errors.New("missing relay bus")
	}
	if explorerSvc == nil {
		return nil, errors.New("missing chain backend")
	}
	if sessionRepo == nil || poolRepo == nil {
		return nil, errors.New("missing repositories")
	}
	if _, err := wallet.NetworkParams(network); err != nil {
		return nil, err
	}
	return &Service{
		relay:       relay,
		explorerSvc: explorerSvc,
		signer:      signer,
		network:     network,
		sessionRepo: sessionRepo,
		poolRepo:    poolRepo,
		now:         time.Now,
	}, nil
}

// InitiateCoinJoin creates a new pool, advertises it on the relay, drives the
// session to a terminal status and returns the broadcast txid.
func (s *Service) InitiateCoinJoin(
	ctx context.Context, cfg domain.PoolConfig, peer PeerConfig,
) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if cfg.Network != s.network {
		return "", fmt.Errorf("%w: pool network %s does not match this daemon", ErrValidation, cfg.Network)
	}
	ownCommitment, err := s.buildOwnCommitment(cfg, peer)
	if err != nil {
		return "", err
	}

	pool, err := domain.NewPool(cfg, s.relay.PublicKey(), s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := s.poolRepo.AddPool(ctx, *pool); err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}

	session := domain.NewSession(*pool, true, s.now())
	if err := s.sessionRepo.AddSession(ctx, session); err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}

	sub, err := s.relay.Subscribe(ctx, ports.Filter{
		Kinds:  []int{ports.KindPoolMessage},
		PoolID: pool.ID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}
	defer sub.Close()

	rawPool, _ := json.Marshal(pool)
	if err := s.relay.Publish(
		ctx, ports.KindPoolAdvertisement, nil, string(rawPool),
	); err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}
	if err := session.MarkAdvertised(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}
	log.WithFields(log.Fields{
		"pool":         pool.ID,
		"denomination": pool.Denomination,
		"peers":        pool.Peers,
	}).Info("pool advertised")

	// The initiator self-admits as the first commitment.
	if ok, reason := session.Admit(ownCommitment); !ok {
		return "", fmt.Errorf("%w: %s", ErrValidation, reason)
	}
	if err := s.publishMessage(
		ctx, pool.ID, domain.NewCommitmentMsg(ownCommitment),
	); err != nil {
		return "", err
	}

	return s.runSession(ctx, session, sub, ownCommitment)
}

// JoinCoinJoin joins a previously discovered pool, drives the session to a
// terminal status and returns the broadcast txid. The advertisement must have
// been observed by a prior ListPools call.
func (s *Service) JoinCoinJoin(
	ctx context.Context, poolID string, peer PeerConfig,
) (string, error) {
	pool, err := s.poolRepo.GetPool(ctx, poolID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}
	if pool == nil {
		return "", ErrPoolNotFound
	}
	if pool.IsExpired(s.now()) {
		return "", fmt.Errorf("%w: pool already expired", ErrDeadlineExceeded)
	}
	if pool.Network != s.network {
		return "", fmt.Errorf("%w: pool network %s does not match this daemon", ErrPolicyRejected, pool.Network)
	}
	if peer.Denomination != 0 && peer.Denomination != pool.Denomination {
		return "", fmt.Errorf("%w: denomination %d does not match", ErrPolicyRejected, pool.Denomination)
	}
	if peer.MaxFee != 0 && pool.Fee > peer.MaxFee {
		return "", fmt.Errorf("%w: pool fee %d above ceiling %d", ErrPolicyRejected, pool.Fee, peer.MaxFee)
	}

	cfg := pool.Config(s.now())
	ownCommitment, err := s.buildOwnCommitment(cfg, peer)
	if err != nil {
		return "", err
	}

	session := domain.NewSession(*pool, false, s.now())
	if err := s.sessionRepo.AddSession(ctx, session); err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}

	sub, err := s.relay.Subscribe(ctx, ports.Filter{
		Kinds:  []int{ports.KindPoolMessage},
		PoolID: pool.ID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}
	defer sub.Close()

	if ok, reason := session.Admit(ownCommitment); !ok {
		return "", fmt.Errorf("%w: %s", ErrValidation, reason)
	}
	if err := s.publishMessage(
		ctx, pool.ID, domain.NewCommitmentMsg(ownCommitment),
	); err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"pool": pool.ID}).Info("commitment published")

	return s.runSession(ctx, session, sub, ownCommitment)
}

// buildOwnCommitment resolves this peer's input against chain state and
// validates it against the pool parameters before anything is published.
func (s *Service) buildOwnCommitment(
	cfg domain.PoolConfig, peer PeerConfig,
) (domain.Commitment, error) {
	status, err := s.explorerSvc.GetOutpointStatus(peer.InputTxid, peer.InputVout)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("%w: %s", ErrTransport, err)
	}
	if status == nil {
		return domain.Commitment{}, fmt.Errorf("%w: input outpoint unknown to the chain backend", ErrValidation)
	}
	if status.Spent {
		return domain.Commitment{}, fmt.Errorf("%w: input outpoint already spent", ErrValidation)
	}
	if status.Value != cfg.Denomination+cfg.FeeShare() {
		return domain.Commitment{}, fmt.Errorf(
			"%w: input funds %d sats, pool requires exactly %d",
			ErrValidation, status.Value, cfg.Denomination+cfg.FeeShare(),
		)
	}

	params, err := wallet.NetworkParams(cfg.Network)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	addr, err := btcutil.DecodeAddress(peer.OutputAddress, params)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("%w: invalid output address: %s", ErrValidation, err)
	}
	outputScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	c := domain.Commitment{
		PublicKey:    s.relay.PublicKey(),
		Txid:         peer.InputTxid,
		Vout:         peer.InputVout,
		Value:        status.Value,
		OutputScript: hex.EncodeToString(outputScript),
		InputScript:  hex.EncodeToString(status.Script),
	}
	if err := c.Validate(cfg); err != nil {
		return domain.Commitment{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return c, nil
}

// runSession is the event loop of one pool participation: it suspends until
// the next relevant bus event or the pool deadline and applies one state
// transition per event, in observed order.
func (s *Service) runSession(
	ctx context.Context,
	session *domain.Session,
	sub ports.Subscription,
	own domain.Commitment,
) (string, error) {
	logger := log.WithFields(log.Fields{
		"pool":    session.Pool.ID,
		"session": session.ID,
	})
	timer := time.NewTimer(time.Until(time.Unix(session.Deadline, 0)))
	defer timer.Stop()

	var pendingFreezeHash string
	pendingSigs := make([]domain.SignatureMsg, 0)
	signed := false

	for {
		select {
		case <-ctx.Done():
			session.Abort(ErrCanceled.Error())
			s.finalize(session)
			return "", ErrCanceled

		case <-timer.C:
			if session.Expire(s.now()) {
				logger.Warn("session expired before completion")
				s.finalize(session)
				return "", ErrDeadlineExceeded
			}
			// The clock may have stepped backwards since the timer was armed.
			timer.Reset(time.Until(time.Unix(session.Deadline, 0)))

		case ev, ok := <-sub.Events():
			if !ok {
				session.Abort("relay subscription closed")
				s.finalize(session)
				return "", fmt.Errorf("%w: relay subscription closed", ErrTransport)
			}
			s.applyEvent(logger, session, ev, &pendingFreezeHash, &pendingSigs)
		}

		// Derived transitions: freeze on count, sign once the draft hash is
		// agreed, broadcast once every signature is collected and verified.
		if session.Status == domain.SessionStatusCollecting && session.IsFull() {
			if err := session.Freeze(); err != nil {
				s.finalize(session)
				return "", fmt.Errorf("%w: %s", ErrProtocolViolation, err)
			}
			logger.WithField("draft_hash", session.DraftHash).Info("commitment set frozen")
			if session.Initiator {
				if err := s.publishMessage(
					ctx, session.Pool.ID, domain.NewFreezeMsg(session.DraftHash),
				); err != nil {
					session.Abort(err.Error())
					s.finalize(session)
					return "", err
				}
				// The announcement matches the local draft by construction.
				if err := session.VerifyFreeze(session.DraftHash); err != nil {
					s.finalize(session)
					return "", fmt.Errorf("%w: %s", ErrProtocolViolation, err)
				}
			} else if pendingFreezeHash != "" {
				if err := session.VerifyFreeze(pendingFreezeHash); err != nil {
					s.finalize(session)
					return "", fmt.Errorf("%w: %s", ErrProtocolViolation, err)
				}
			}
		}

		if session.Status == domain.SessionStatusSigning {
			if !signed {
				if err := s.signAndPublish(ctx, logger, session, own); err != nil {
					session.Abort(err.Error())
					s.finalize(session)
					return "", err
				}
				signed = true
			}
			for _, sig := range pendingSigs {
				s.applySignature(logger, session, sig)
			}
			pendingSigs = pendingSigs[:0]
		}

		if session.Status == domain.SessionStatusAborted {
			logger.WithField("reason", session.AbortReason).Warn("session aborted")
			s.finalize(session)
			return "", fmt.Errorf("%w: %s", ErrProtocolViolation, session.AbortReason)
		}

		if session.Status == domain.SessionStatusSigning && session.HasAllSignatures() {
			return s.broadcast(logger, session)
		}
	}
}

func (s *Service) applyEvent(
	logger *log.Entry,
	session *domain.Session,
	ev ports.SignedEvent,
	pendingFreezeHash *string,
	pendingSigs *[]domain.SignatureMsg,
) {
	if ev.Kind != ports.KindPoolMessage || ev.PoolID() != session.Pool.ID {
		return
	}
	msg, err := domain.ParsePoolMessage(ev.Content)
	if err != nil {
		logger.WithError(err).Debug("skipping malformed pool message")
		commitmentsRejected.WithLabelValues("malformed").Inc()
		return
	}

	switch msg.Type {
	case domain.MsgTypeCommitment:
		if session.Status != domain.SessionStatusCollecting {
			return
		}
		c := msg.Commitment.ToCommitment()
		// The claimed identity must be the key that signed the relay event,
		// or an outsider could commit on behalf of an honest peer.
		if c.PublicKey != ev.PubKey {
			logger.WithField("npub", c.PublicKey).
				Debug("commitment claims a key other than the event author, dropped")
			commitmentsRejected.WithLabelValues("author_mismatch").Inc()
			return
		}
		status, err := s.explorerSvc.GetOutpointStatus(c.Txid, c.Vout)
		if err != nil {
			logger.WithError(err).Warn("chain lookup failed, dropping commitment")
			commitmentsRejected.WithLabelValues("chain_lookup").Inc()
			return
		}
		if status == nil || status.Spent {
			logger.WithField("outpoint", c.OutpointKey()).Debug("commitment outpoint unknown or spent")
			commitmentsRejected.WithLabelValues("spent").Inc()
			return
		}
		if status.Value != c.Value {
			logger.WithField("outpoint", c.OutpointKey()).Debug("commitment value does not match chain state")
			commitmentsRejected.WithLabelValues("value_mismatch").Inc()
			return
		}
		c.InputScript = hex.EncodeToString(status.Script)
		admitted, reason := session.Admit(c)
		if !admitted {
			logger.WithError(reason).WithField("outpoint", c.OutpointKey()).
				Debug("commitment dropped")
			commitmentsRejected.WithLabelValues("admission").Inc()
			return
		}
		commitmentsAdmitted.Inc()
		logger.WithFields(log.Fields{
			"outpoint": c.OutpointKey(),
			"admitted": len(session.Commitments),
			"target":   session.Pool.Peers,
		}).Info("commitment admitted")

	case domain.MsgTypeFreeze:
		// Only the pool creator announces the freeze. Announcements from any
		// other key are third-party noise, not authority over the frozen set.
		if ev.PubKey != session.Pool.PublicKey {
			logger.WithField("author", ev.PubKey).
				Debug("freeze announcement not signed by the pool creator, dropped")
			return
		}
		switch {
		case session.Status == domain.SessionStatusCollecting:
			if *pendingFreezeHash == "" {
				*pendingFreezeHash = msg.Freeze.DraftHash
			}
		case session.Status == domain.SessionStatusFrozen:
			if err := session.VerifyFreeze(msg.Freeze.DraftHash); err != nil {
				logger.WithError(err).Error("freeze announcement rejected")
			}
		default:
			// A conflicting announcement over an already agreed draft claims
			// authority over the frozen set.
			if msg.Freeze.DraftHash != session.DraftHash {
				session.Abort(domain.ErrDraftHashMismatch.Error())
			}
		}

	case domain.MsgTypeSignature:
		// A signature claiming an admitted peer's key but published by anyone
		// else would fail verification and needlessly abort the session.
		if msg.Signature.PublicKey != ev.PubKey {
			logger.WithField("npub", msg.Signature.PublicKey).
				Debug("signature claims a key other than the event author, dropped")
			return
		}
		if session.Status < domain.SessionStatusSigning {
			*pendingSigs = append(*pendingSigs, *msg.Signature)
			return
		}
		s.applySignature(logger, session, *msg.Signature)
	}
}

func (s *Service) applySignature(
	logger *log.Entry, session *domain.Session, sig domain.SignatureMsg,
) {
	if session.Status != domain.SessionStatusSigning {
		return
	}
	c, ok := session.CommitmentByKey(sig.PublicKey)
	if !ok {
		logger.Debug("signature from a key outside the frozen set, dropped")
		return
	}
	witness, err := sig.DecodeWitness()
	if err != nil {
		logger.WithError(err).Debug("malformed witness, dropped")
		return
	}
	registered, err := session.RegisterSignature(c.Sequence, wire.TxWitness(witness))
	if err != nil {
		logger.WithError(err).Error("partial signature rejected")
		return
	}
	if registered {
		logger.WithFields(log.Fields{
			"sequence":  c.Sequence,
			"collected": len(session.Signatures),
			"target":    session.Pool.Peers,
		}).Info("partial signature collected")
	}
}

func (s *Service) signAndPublish(
	ctx context.Context,
	logger *log.Entry,
	session *domain.Session,
	own domain.Commitment,
) error {
	draft := session.Draft()
	idx, ok := draft.InputIndex(own.OutPoint())
	if !ok {
		return fmt.Errorf("%w: own input missing from the draft", ErrProtocolViolation)
	}
	prevScript, err := hex.DecodeString(own.InputScript)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	witness, err := s.signer.SignInput(draft.UnsignedTx, idx, own.Value, prevScript)
	if err != nil {
		return fmt.Errorf("%w: signing own input: %s", ErrValidation, err)
	}

	ownSession, ok := session.CommitmentByKey(own.PublicKey)
	if !ok {
		return fmt.Errorf("%w: own commitment missing from the frozen set", ErrProtocolViolation)
	}
	if _, err := session.RegisterSignature(ownSession.Sequence, witness); err != nil {
		return fmt.Errorf("%w: own signature rejected: %s", ErrProtocolViolation, err)
	}
	logger.Info("own input signed")

	return s.publishMessage(ctx, session.Pool.ID, domain.NewSignatureMsg(
		ownSession.Sequence, witness, own.PublicKey,
	))
}

func (s *Service) broadcast(
	logger *log.Entry, session *domain.Session,
) (string, error) {
	tx, err := session.FinalTx()
	if err != nil {
		session.Abort(err.Error())
		s.finalize(session)
		return "", fmt.Errorf("%w: %s", ErrProtocolViolation, err)
	}
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		session.Abort(err.Error())
		s.finalize(session)
		return "", fmt.Errorf("%w: %s", ErrProtocolViolation, err)
	}
	txid, err := s.explorerSvc.BroadcastTransaction(hex.EncodeToString(buf.Bytes()))
	if err != nil {
		session.Abort(err.Error())
		s.finalize(session)
		return "", fmt.Errorf("%w: broadcast: %s", ErrTransport, err)
	}
	if err := session.Complete(txid); err != nil {
		s.finalize(session)
		return "", fmt.Errorf("%w: %s", ErrProtocolViolation, err)
	}
	logger.WithField("txid", txid).Info("coinjoin broadcast")
	s.finalize(session)
	return txid, nil
}

func (s *Service) publishMessage(
	ctx context.Context, poolID string, msg domain.PoolMessage,
) error {
	content, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := s.relay.Publish(
		ctx, ports.KindPoolMessage, ports.PoolTag(poolID), content,
	); err != nil {
		return fmt.Errorf("%w: %s", ErrTransport, err)
	}
	return nil
}

// finalize persists the session outcome. It runs on a fresh context: the
// caller's may already be canceled.
func (s *Service) finalize(session *domain.Session) {
	if session.IsTerminal() {
		sessionsTerminal.WithLabelValues(statusLabel(session.Status)).Inc()
	}
	err := s.sessionRepo.UpdateSession(
		context.Background(), session.ID,
		func(*domain.Session) (*domain.Session, error) { return session, nil },
	)
	if err != nil {
		log.WithError(err).WithField("session", session.ID).
			Warn("failed to persist session outcome")
	}
}
