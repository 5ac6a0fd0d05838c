package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
	"github.com/joinstr-network/joinstr-daemon/internal/core/ports"
)

// ListPools collects pool advertisements published on the relay within the
// lookback window, listening for at most the given timeout. Advertisements
// are deduplicated by pool id, first observation wins. Malformed or expired
// advertisements are skipped. Discovered pools are persisted so that a later
// JoinCoinJoin can resolve them by id.
func (s *Service) ListPools(
	ctx context.Context, lookback, timeout time.Duration,
) ([]domain.Pool, error) {
	sub, err := s.relay.Subscribe(ctx, ports.Filter{
		Kinds: []int{ports.KindPoolAdvertisement},
		Since: s.now().Add(-lookback).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransport, err)
	}
	defer sub.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	pools := make([]domain.Pool, 0)
	seen := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return pools, fmt.Errorf("%w: %s", ErrCanceled, ctx.Err())
		case <-timer.C:
			return pools, nil
		case ev, ok := <-sub.Events():
			if !ok {
				return pools, nil
			}
			if ev.Kind != ports.KindPoolAdvertisement {
				continue
			}
			var pool domain.Pool
			if err := json.Unmarshal([]byte(ev.Content), &pool); err != nil {
				log.WithError(err).Debug("skipping malformed pool advertisement")
				continue
			}
			if err := pool.Validate(); err != nil {
				log.WithError(err).WithField("pool", pool.ID).
					Debug("skipping invalid pool advertisement")
				continue
			}
			if pool.PublicKey != ev.PubKey {
				log.WithField("pool", pool.ID).
					Debug("skipping advertisement not signed by its creator")
				continue
			}
			if pool.IsExpired(s.now()) {
				continue
			}
			if _, dup := seen[pool.ID]; dup {
				continue
			}
			seen[pool.ID] = struct{}{}
			if err := s.poolRepo.AddPool(ctx, pool); err != nil {
				log.WithError(err).WithField("pool", pool.ID).
					Warn("failed to persist discovered pool")
				continue
			}
			pools = append(pools, pool)
		}
	}
}
