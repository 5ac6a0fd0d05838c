package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

type poolRepositoryImpl struct {
	db *DbManager
}

// NewPoolRepositoryImpl returns a badger-backed PoolRepository.
func NewPoolRepositoryImpl(db *DbManager) domain.PoolRepository {
	return poolRepositoryImpl{db: db}
}

func (p poolRepositoryImpl) AddPool(ctx context.Context, pool domain.Pool) error {
	if err := p.db.PoolStore.Insert(pool.ID, pool); err != nil {
		if err == badgerhold.ErrKeyExists {
			return nil
		}
		return err
	}
	return nil
}

func (p poolRepositoryImpl) GetPool(
	ctx context.Context, id string,
) (*domain.Pool, error) {
	var pool domain.Pool
	if err := p.db.PoolStore.Get(id, &pool); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}

func (p poolRepositoryImpl) GetAllPools(ctx context.Context) ([]domain.Pool, error) {
	pools := make([]domain.Pool, 0)
	if err := p.db.PoolStore.Find(&pools, nil); err != nil {
		return nil, err
	}
	return pools, nil
}
