package stock

import (
	"context"
	"fmt"

	"fieldledger/internal/core/apperror"
)

const (
	defaultTransactionLimit = 100
	maxTransactionLimit     = 5000
)

// Service exposes read access to stock documents and the ledger.
// Writes happen only through the invoice save operation.
type Service struct {
	repo   Repository
	ledger LedgerRepository
}

// NewService creates a stock read service.
func NewService(repo Repository, ledger LedgerRepository) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// GetStock returns the technician's current stock document.
func (s *Service) GetStock(ctx context.Context, technicianID string) (*TechnicianStock, error) {
	if technicianID == "" {
		return nil, apperror.NewValidation("technician id is required")
	}
	st, err := s.repo.Get(ctx, technicianID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return st, nil
}

// ListTransactions returns ledger rows for a technician.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.TechnicianID == "" {
		return nil, apperror.NewValidation("technician id is required")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.NewValidation("'to' must not be before 'from'")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultTransactionLimit
	case filter.Limit > maxTransactionLimit:
		filter.Limit = maxTransactionLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	rows, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return rows, nil
}
