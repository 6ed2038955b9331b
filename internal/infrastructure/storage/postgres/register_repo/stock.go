// Package register_repo provides PostgreSQL storage for technician stock
// documents and the stock transaction ledger.
package register_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/domain/stock"
	"fieldledger/internal/infrastructure/storage/postgres"
)

const stockTable = "technician_stock"

// stockRow is the stored form of stock.TechnicianStock. Items are kept as a
// single JSONB document so a save rewrites them atomically with the version.
type stockRow struct {
	TechnicianID string          `db:"technician_id"`
	TeamID       string          `db:"team_id"`
	Items        json.RawMessage `db:"items"`
	Version      int64           `db:"version"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get implements stock.Repository.
func (r *StockRepo) Get(ctx context.Context, technicianID string) (*stock.TechnicianStock, error) {
	sql, args, err := r.builder.
		Select("technician_id", "team_id", "items", "version", "updated_at").
		From(stockTable).
		Where(squirrel.Eq{"technician_id": technicianID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row stockRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return &stock.TechnicianStock{TechnicianID: technicianID, Items: []stock.Item{}}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}

	doc := &stock.TechnicianStock{
		TechnicianID: row.TechnicianID,
		TeamID:       row.TeamID,
		Version:      row.Version,
		UpdatedAt:    row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Items, &doc.Items); err != nil {
		return nil, fmt.Errorf("decode stock items: %w", err)
	}
	return doc, nil
}

// Save implements stock.Repository. Version 0 means the document does not
// exist yet, so the first save is an insert that loses against a concurrent
// first save.
func (r *StockRepo) Save(ctx context.Context, doc *stock.TechnicianStock, expectedVersion int64) error {
	items, err := json.Marshal(doc.Items)
	if err != nil {
		return fmt.Errorf("encode stock items: %w", err)
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	next := expectedVersion + 1

	var q squirrel.Sqlizer
	if expectedVersion == 0 {
		q = r.builder.Insert(stockTable).
			Columns("technician_id", "team_id", "items", "version", "updated_at").
			Values(doc.TechnicianID, doc.TeamID, items, next, updatedAt).
			Suffix("ON CONFLICT (technician_id) DO NOTHING")
	} else {
		q = r.builder.Update(stockTable).
			Set("team_id", doc.TeamID).
			Set("items", items).
			Set("version", next).
			Set("updated_at", updatedAt).
			Where(squirrel.Eq{"technician_id": doc.TechnicianID, "version": expectedVersion})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build save: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("save stock: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("technician_stock", doc.TechnicianID).
			WithDetail("expected_version", expectedVersion)
	}
	doc.Version = next
	return nil
}
