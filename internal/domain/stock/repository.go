package stock

import (
	"context"
	"time"
)

// Repository persists technician stock documents.
type Repository interface {
	// Get returns the technician's stock. A technician without stock gets an
	// empty document with Version 0, not an error.
	Get(ctx context.Context, technicianID string) (*TechnicianStock, error)

	// Save rewrites the whole document if its stored version still equals
	// expectedVersion, and bumps the version. A mismatch yields
	// apperror CONCURRENT_MODIFICATION.
	Save(ctx context.Context, s *TechnicianStock, expectedVersion int64) error
}

// LedgerRepository persists ledger rows.
type LedgerRepository interface {
	// Append inserts rows. Must run inside the commit transaction.
	Append(ctx context.Context, rows []Transaction) error

	// List returns rows matching filter, newest first.
	List(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// TransactionFilter narrows ledger queries.
type TransactionFilter struct {
	TechnicianID string
	ItemID       string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}
