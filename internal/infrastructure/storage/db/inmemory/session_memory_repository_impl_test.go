package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
	"github.com/joinstr-network/joinstr-daemon/internal/infrastructure/storage/db/inmemory"
)

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := inmemory.NewSessionRepositoryImpl()

	pool := testPool(t)
	session := domain.NewSession(pool, true, time.Now())
	require.NoError(t, repo.AddSession(ctx, session))
	require.Error(t, repo.AddSession(ctx, session))

	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, session.ID, got.ID)

	missing, err := repo.GetSession(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	err = repo.UpdateSession(ctx, session.ID,
		func(s *domain.Session) (*domain.Session, error) {
			s.Abort("abandoned")
			return s, nil
		},
	)
	require.NoError(t, err)

	got, err = repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusAborted, got.Status)
	require.Equal(t, "abandoned", got.AbortReason)

	err = repo.UpdateSession(ctx, "nope",
		func(s *domain.Session) (*domain.Session, error) { return s, nil },
	)
	require.ErrorIs(t, err, inmemory.ErrSessionNotFound)

	all, err := repo.GetAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestPoolRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := inmemory.NewPoolRepositoryImpl()

	pool := testPool(t)
	require.NoError(t, repo.AddPool(ctx, pool))
	// Advertisements are immutable, re-inserting is a no-op.
	require.NoError(t, repo.AddPool(ctx, pool))

	got, err := repo.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, pool.Denomination, got.Denomination)

	missing, err := repo.GetPool(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	all, err := repo.GetAllPools(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func testPool(t *testing.T) domain.Pool {
	t.Helper()
	pool, err := domain.NewPool(
		domain.PoolConfig{
			Denomination: 100_000,
			Fee:          1000,
			MaxDuration:  600,
			Peers:        3,
			Network:      domain.NetworkRegtest,
		},
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		time.Now(),
	)
	require.NoError(t, err)
	return *pool
}
