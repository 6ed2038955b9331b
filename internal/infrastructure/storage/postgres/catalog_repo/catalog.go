// Package catalog_repo provides PostgreSQL storage for team catalogs.
package catalog_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/infrastructure/storage/postgres"
)

const catalogTable = "catalogs"

// CatalogChangedChannel is the NOTIFY channel announcing a saved catalog.
// The payload is the team id.
const CatalogChangedChannel = "catalog_changed"

type catalogRow struct {
	TeamID    string          `db:"team_id"`
	Entries   json.RawMessage `db:"entries"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ catalog.Repository = (*CatalogRepo)(nil)

// NewCatalogRepo creates a new catalog repository.
func NewCatalogRepo(txManager *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByTeam implements catalog.Repository.
func (r *CatalogRepo) GetByTeam(ctx context.Context, teamID string) (*catalog.Catalog, error) {
	sql, args, err := r.builder.Select("team_id", "entries", "updated_at").
		From(catalogTable).
		Where(squirrel.Eq{"team_id": teamID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row catalogRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("catalog", teamID)
		}
		return nil, fmt.Errorf("get catalog: %w", err)
	}

	c := &catalog.Catalog{TeamID: row.TeamID, UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal(row.Entries, &c.Entries); err != nil {
		return nil, fmt.Errorf("decode catalog entries: %w", err)
	}
	return c, nil
}

// Save implements catalog.Repository as an upsert.
func (r *CatalogRepo) Save(ctx context.Context, c *catalog.Catalog) error {
	entries, err := json.Marshal(c.Entries)
	if err != nil {
		return fmt.Errorf("encode catalog entries: %w", err)
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	sql, args, err := r.builder.Insert(catalogTable).
		Columns("team_id", "entries", "updated_at").
		Values(c.TeamID, entries, updatedAt).
		Suffix("ON CONFLICT (team_id) DO UPDATE SET entries = EXCLUDED.entries, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	q := r.txManager.GetQuerier(ctx)
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	// Delivered on commit when inside a transaction.
	if _, err := q.Exec(ctx, "SELECT pg_notify($1, $2)", CatalogChangedChannel, c.TeamID); err != nil {
		return fmt.Errorf("notify catalog change: %w", err)
	}
	return nil
}
