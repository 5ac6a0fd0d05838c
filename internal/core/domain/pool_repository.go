package domain

import "context"

// PoolRepository persists pool advertisements observed on the relay, so that
// discovery can answer from the local view and completed pools keep an
// auditable trail.
type PoolRepository interface {
	// AddPool inserts the advertisement if not already known. Advertisements
	// are immutable: a second insert with the same id is a no-op.
	AddPool(ctx context.Context, pool Pool) error
	// GetPool returns the advertisement with the given id, or nil.
	GetPool(ctx context.Context, id string) (*Pool, error)
	// GetAllPools returns every observed advertisement.
	GetAllPools(ctx context.Context) ([]Pool, error)
}
