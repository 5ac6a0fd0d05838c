package application_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
	"github.com/joinstr-network/joinstr-daemon/internal/core/ports"
)

func TestListPools(t *testing.T) {
	t.Parallel()

	hub := newFakeHub()
	chain := newFakeExplorer()
	cfg := domain.PoolConfig{
		Denomination: 100_000,
		Fee:          1000,
		MaxDuration:  600,
		Peers:        3,
		Network:      domain.NetworkRegtest,
	}

	observer := newParticipant(t, hub, chain, cfg, 0)
	ctx := context.Background()

	creator := hub.newBus(t)
	pool, err := domain.NewPool(cfg, creator.pubKey, time.Now())
	require.NoError(t, err)
	rawPool, err := json.Marshal(pool)
	require.NoError(t, err)

	// The same advertisement relayed twice plus three kinds of noise: garbage
	// payload, an advertisement failing validation and one signed by a key
	// other than its claimed creator.
	require.NoError(t, creator.Publish(
		ctx, ports.KindPoolAdvertisement, nil, string(rawPool),
	))
	require.NoError(t, creator.Publish(
		ctx, ports.KindPoolAdvertisement, nil, string(rawPool),
	))
	require.NoError(t, creator.Publish(
		ctx, ports.KindPoolAdvertisement, nil, "not even json",
	))

	invalid := *pool
	invalid.Peers = 1
	rawInvalid, err := json.Marshal(invalid)
	require.NoError(t, err)
	require.NoError(t, creator.Publish(
		ctx, ports.KindPoolAdvertisement, nil, string(rawInvalid),
	))

	impostor := hub.newBus(t)
	require.NoError(t, impostor.Publish(
		ctx, ports.KindPoolAdvertisement, nil, string(rawPool),
	))

	expired, err := domain.NewPool(cfg, creator.pubKey, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	rawExpired, err := json.Marshal(expired)
	require.NoError(t, err)
	require.NoError(t, creator.Publish(
		ctx, ports.KindPoolAdvertisement, nil, string(rawExpired),
	))

	pools, err := observer.svc.ListPools(ctx, time.Hour, 300*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, pool.ID, pools[0].ID)

	// The discovered pool is persisted for a later join.
	stored, err := observer.poolRepo.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, pool.Denomination, stored.Denomination)
}
