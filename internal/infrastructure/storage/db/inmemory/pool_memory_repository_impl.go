package inmemory

import (
	"context"
	"sync"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

type poolInmemoryStore struct {
	pools  map[string]domain.Pool
	order  []string
	locker *sync.Mutex
}

type poolRepositoryImpl struct {
	store *poolInmemoryStore
}

// NewPoolRepositoryImpl returns a new inmemory PoolRepository implementation.
func NewPoolRepositoryImpl() domain.PoolRepository {
	return &poolRepositoryImpl{
		store: &poolInmemoryStore{
			pools:  map[string]domain.Pool{},
			locker: &sync.Mutex{},
		},
	}
}

func (r poolRepositoryImpl) AddPool(_ context.Context, pool domain.Pool) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.pools[pool.ID]; ok {
		return nil
	}
	r.store.pools[pool.ID] = pool
	r.store.order = append(r.store.order, pool.ID)
	return nil
}

func (r poolRepositoryImpl) GetPool(
	_ context.Context, id string,
) (*domain.Pool, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	pool, ok := r.store.pools[id]
	if !ok {
		return nil, nil
	}
	return &pool, nil
}

func (r poolRepositoryImpl) GetAllPools(_ context.Context) ([]domain.Pool, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	pools := make([]domain.Pool, 0, len(r.store.order))
	for _, id := range r.store.order {
		pools = append(pools, r.store.pools[id])
	}
	return pools, nil
}
