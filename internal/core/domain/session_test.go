package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

func TestNewSession(t *testing.T) {
	t.Parallel()

	pool := testPool(t, testConfig(3))

	initiator := domain.NewSession(pool, true, time.Now())
	require.Equal(t, domain.SessionStatusAdvertising, initiator.Status)
	require.Equal(t, pool.Timeout, initiator.Deadline)

	peer := domain.NewSession(pool, false, time.Now())
	require.Equal(t, domain.SessionStatusCollecting, peer.Status)
	require.NotEqual(t, initiator.ID, peer.ID)
}

func TestSessionMarkAdvertised(t *testing.T) {
	t.Parallel()

	cfg := testConfig(2)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	session := domain.NewSession(pool, true, time.Now())

	ok, err := session.Admit(peers[0].commitment)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrSessionNotCollecting)

	require.NoError(t, session.MarkAdvertised())
	require.Equal(t, domain.SessionStatusCollecting, session.Status)
	require.Error(t, session.MarkAdvertised())

	ok, err = session.Admit(peers[0].commitment)
	require.True(t, ok)
	require.NoError(t, err)
}

func TestSessionAdmit(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	session := domain.NewSession(pool, false, time.Now())

	for i, p := range peers {
		ok, err := session.Admit(p.commitment)
		require.True(t, ok)
		require.NoError(t, err)
		require.Equal(t, i, session.Commitments[i].Sequence)
	}
	require.True(t, session.IsFull())

	// A late commitment past the target count is ignored, not fatal.
	extra := newTestPeers(t, cfg)[0]
	ok, err := session.Admit(extra.commitment)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrSessionNotCollecting)
	require.Len(t, session.Commitments, cfg.Peers)
}

func TestSessionAdmitDuplicates(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	session := domain.NewSession(pool, false, time.Now())
	ok, err := session.Admit(peers[0].commitment)
	require.True(t, ok)
	require.NoError(t, err)

	// Same outpoint under a fresh key: dropped, session keeps collecting.
	dup := peers[0].commitment
	dup.PublicKey = newRelayKey(t)
	ok, err = session.Admit(dup)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrDuplicateOutpoint)
	require.Len(t, session.Commitments, 1)
	require.Equal(t, domain.SessionStatusCollecting, session.Status)

	// Same key under a fresh outpoint: dropped too.
	dup = peers[1].commitment
	dup.PublicKey = peers[0].commitment.PublicKey
	ok, err = session.Admit(dup)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrDuplicateKey)

	// The honest remaining peers still fill the pool.
	for _, p := range peers[1:] {
		ok, err := session.Admit(p.commitment)
		require.True(t, ok)
		require.NoError(t, err)
	}
	require.True(t, session.IsFull())
	require.NoError(t, session.Freeze())
}

func TestSessionAdmitInvalidCommitment(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	session := domain.NewSession(pool, false, time.Now())

	wrongValue := peers[0].commitment
	wrongValue.Value = cfg.Denomination
	ok, err := session.Admit(wrongValue)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrCommitmentInvalidValue)

	badScript := peers[0].commitment
	badScript.OutputScript = "51"
	ok, err = session.Admit(badScript)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrCommitmentInvalidScript)

	badTxid := peers[0].commitment
	badTxid.Txid = "zz"
	ok, err = session.Admit(badTxid)
	require.False(t, ok)
	require.ErrorIs(t, err, domain.ErrCommitmentInvalidOutpoint)

	require.Empty(t, session.Commitments)
	require.Equal(t, domain.SessionStatusCollecting, session.Status)
}

func TestSessionFreeze(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	session := domain.NewSession(pool, false, time.Now())

	require.ErrorIs(t, session.Freeze(), domain.ErrSessionNotCollecting)

	for _, p := range peers {
		ok, err := session.Admit(p.commitment)
		require.True(t, ok)
		require.NoError(t, err)
	}

	require.NoError(t, session.Freeze())
	require.Equal(t, domain.SessionStatusFrozen, session.Status)
	require.Len(t, session.DraftHash, 64)
	require.NotNil(t, session.Draft())
	require.Equal(t, session.DraftHash, session.Draft().Hash)
}

func TestSessionVerifyFreeze(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	t.Run("matching_hash", func(t *testing.T) {
		session := fullSession(t, pool, peers)
		require.NoError(t, session.Freeze())
		require.NoError(t, session.VerifyFreeze(session.DraftHash))
		require.Equal(t, domain.SessionStatusSigning, session.Status)
	})

	t.Run("mismatching_hash_aborts", func(t *testing.T) {
		session := fullSession(t, pool, peers)
		require.NoError(t, session.Freeze())
		err := session.VerifyFreeze(
			"0000000000000000000000000000000000000000000000000000000000000000",
		)
		require.ErrorIs(t, err, domain.ErrDraftHashMismatch)
		require.Equal(t, domain.SessionStatusAborted, session.Status)
		require.Equal(t, domain.ErrDraftHashMismatch.Error(), session.AbortReason)
	})

	t.Run("before_freeze", func(t *testing.T) {
		session := fullSession(t, pool, peers)
		require.ErrorIs(
			t, session.VerifyFreeze(session.DraftHash), domain.ErrSessionNotFrozen,
		)
	})
}

func TestSessionSigningFlow(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	session := fullSession(t, pool, peers)
	require.NoError(t, session.Freeze())
	require.NoError(t, session.VerifyFreeze(session.DraftHash))

	draft := session.Draft()
	for _, p := range peers {
		c, ok := session.CommitmentByKey(p.relayKey)
		require.True(t, ok)

		witness := p.signOwnInput(t, draft)
		registered, err := session.RegisterSignature(c.Sequence, witness)
		require.True(t, registered)
		require.NoError(t, err)

		// Replaying the same signature is a no-op.
		registered, err = session.RegisterSignature(c.Sequence, witness)
		require.False(t, registered)
		require.NoError(t, err)
	}
	require.True(t, session.HasAllSignatures())

	tx, err := session.FinalTx()
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusBroadcasting, session.Status)
	require.Equal(t, session.DraftHash, tx.TxHash().String())
	for _, in := range tx.TxIn {
		require.NotEmpty(t, in.Witness)
	}

	require.NoError(t, session.Complete(tx.TxHash().String()))
	require.Equal(t, domain.SessionStatusDone, session.Status)
	require.True(t, session.IsDone())
	require.Equal(t, tx.TxHash().String(), session.TxID)
}

func TestSessionRejectsInvalidSignature(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)

	session := fullSession(t, pool, peers)
	require.NoError(t, session.Freeze())
	require.NoError(t, session.VerifyFreeze(session.DraftHash))

	// Peer 1's witness presented as peer 0's signature cannot satisfy peer
	// 0's input script.
	draft := session.Draft()
	forged := peers[1].signOwnInput(t, draft)
	c, ok := session.CommitmentByKey(peers[0].relayKey)
	require.True(t, ok)

	registered, err := session.RegisterSignature(c.Sequence, forged)
	require.False(t, registered)
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)
	require.Equal(t, domain.SessionStatusAborted, session.Status)
}

func TestSessionExpire(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	pool := testPool(t, cfg)
	peers := newTestPeers(t, cfg)
	deadline := time.Unix(pool.Timeout, 0)

	t.Run("before_deadline", func(t *testing.T) {
		session := domain.NewSession(pool, false, time.Now())
		require.False(t, session.Expire(deadline.Add(-time.Minute)))
		require.Equal(t, domain.SessionStatusCollecting, session.Status)
	})

	t.Run("while_collecting", func(t *testing.T) {
		session := domain.NewSession(pool, false, time.Now())
		require.True(t, session.Expire(deadline))
		require.Equal(t, domain.SessionStatusExpired, session.Status)
	})

	t.Run("while_signing", func(t *testing.T) {
		session := fullSession(t, pool, peers)
		require.NoError(t, session.Freeze())
		require.NoError(t, session.VerifyFreeze(session.DraftHash))
		require.True(t, session.Expire(deadline))
		require.Equal(t, domain.SessionStatusExpired, session.Status)
	})

	t.Run("not_from_terminal", func(t *testing.T) {
		session := domain.NewSession(pool, false, time.Now())
		session.Abort("boom")
		require.False(t, session.Expire(deadline))
		require.Equal(t, domain.SessionStatusAborted, session.Status)
	})
}

func fullSession(t *testing.T, pool domain.Pool, peers []testPeer) *domain.Session {
	t.Helper()
	session := domain.NewSession(pool, false, time.Now())
	for _, p := range peers {
		ok, err := session.Admit(p.commitment)
		require.True(t, ok)
		require.NoError(t, err)
	}
	return session
}
