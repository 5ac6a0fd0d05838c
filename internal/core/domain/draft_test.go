package domain_test

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

func TestBuildDraft(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	peers := newTestPeers(t, cfg)
	commitments := commitmentsOf(peers)

	draft, err := domain.BuildDraft(cfg, commitments)
	require.NoError(t, err)
	require.NotNil(t, draft)
	require.Len(t, draft.Hash, 64)
	require.Len(t, draft.UnsignedTx.TxIn, cfg.Peers)
	require.Len(t, draft.UnsignedTx.TxOut, cfg.Peers)

	// Inputs ascend by outpoint, whatever the admission order was.
	for i := 1; i < len(draft.UnsignedTx.TxIn); i++ {
		prev := draft.UnsignedTx.TxIn[i-1].PreviousOutPoint
		cur := draft.UnsignedTx.TxIn[i].PreviousOutPoint
		prevTxid, curTxid := prev.Hash.String(), cur.Hash.String()
		require.True(
			t,
			prevTxid < curTxid || (prevTxid == curTxid && prev.Index < cur.Index),
		)
	}

	// Every output pays exactly the denomination and every committed script
	// is present exactly once.
	scripts := map[string]int{}
	for _, out := range draft.UnsignedTx.TxOut {
		require.Equal(t, int64(cfg.Denomination), out.Value)
		scripts[hex.EncodeToString(out.PkScript)]++
	}
	for _, c := range commitments {
		require.Equal(t, 1, scripts[c.OutputScript])
	}

	// Each commitment resolves to a draft input.
	for _, c := range commitments {
		_, ok := draft.InputIndex(c.OutPoint())
		require.True(t, ok)
	}
}

func TestBuildDraftDeterministic(t *testing.T) {
	t.Parallel()

	cfg := testConfig(5)
	peers := newTestPeers(t, cfg)
	commitments := commitmentsOf(peers)

	reference, err := domain.BuildDraft(cfg, commitments)
	require.NoError(t, err)
	refBytes := serializeTx(t, reference)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]domain.Commitment, len(commitments))
		copy(shuffled, commitments)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		draft, err := domain.BuildDraft(cfg, shuffled)
		require.NoError(t, err)
		require.Equal(t, reference.Hash, draft.Hash)
		require.True(t, bytes.Equal(refBytes, serializeTx(t, draft)))
	}
}

func TestFailingBuildDraft(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3)
	peers := newTestPeers(t, cfg)
	commitments := commitmentsOf(peers)

	t.Run("wrong_commitment_count", func(t *testing.T) {
		draft, err := domain.BuildDraft(cfg, commitments[:2])
		require.Nil(t, draft)
		require.ErrorIs(t, err, domain.ErrDraftWrongCommitmentCount)
	})

	t.Run("wrong_input_value", func(t *testing.T) {
		tampered := make([]domain.Commitment, len(commitments))
		copy(tampered, commitments)
		tampered[1].Value = cfg.Denomination + cfg.FeeShare() + 1
		draft, err := domain.BuildDraft(cfg, tampered)
		require.Nil(t, draft)
		require.ErrorIs(t, err, domain.ErrCommitmentInvalidValue)
	})

	t.Run("duplicate_outpoint", func(t *testing.T) {
		tampered := make([]domain.Commitment, len(commitments))
		copy(tampered, commitments)
		tampered[2].Txid = tampered[0].Txid
		tampered[2].Vout = tampered[0].Vout
		draft, err := domain.BuildDraft(cfg, tampered)
		require.Nil(t, draft)
		require.ErrorIs(t, err, domain.ErrDuplicateOutpoint)
	})

	t.Run("duplicate_key", func(t *testing.T) {
		tampered := make([]domain.Commitment, len(commitments))
		copy(tampered, commitments)
		tampered[2].PublicKey = tampered[0].PublicKey
		draft, err := domain.BuildDraft(cfg, tampered)
		require.Nil(t, draft)
		require.ErrorIs(t, err, domain.ErrDuplicateKey)
	})
}

func commitmentsOf(peers []testPeer) []domain.Commitment {
	commitments := make([]domain.Commitment, 0, len(peers))
	for _, p := range peers {
		commitments = append(commitments, p.commitment)
	}
	return commitments
}

func serializeTx(t *testing.T, draft *domain.Draft) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, draft.UnsignedTx.Serialize(&buf))
	return buf.Bytes()
}
