package catalog

import "context"

// Repository reads and writes stored team catalogs. Catalog writes belong to
// the settings feature and the seed tool; the ledger only reads.
type Repository interface {
	// GetByTeam returns apperror NOT_FOUND when the team has no catalog.
	GetByTeam(ctx context.Context, teamID string) (*Catalog, error)
	Save(ctx context.Context, c *Catalog) error
}

// Cache is a read-through cache in front of Repository.
type Cache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, teamID string) (*Catalog, error)
	Set(ctx context.Context, c *Catalog) error
	Invalidate(ctx context.Context, teamID string) error
}
