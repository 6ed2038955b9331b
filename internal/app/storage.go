// Package app wires configuration, storage and domain services for the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"

	"fieldledger/internal/config"
	"fieldledger/internal/core/idempotency"
	"fieldledger/internal/core/tx"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
	"fieldledger/internal/infrastructure/storage/memory"
	"fieldledger/internal/infrastructure/storage/postgres"
	"fieldledger/internal/infrastructure/storage/postgres/catalog_repo"
	"fieldledger/internal/infrastructure/storage/postgres/document_repo"
	"fieldledger/internal/infrastructure/storage/postgres/register_repo"
	"fieldledger/pkg/logger"
	"fieldledger/pkg/numerator"
)

// Storage bundles the repositories of the configured driver.
type Storage struct {
	Driver string
	// Pool is nil for the memory driver.
	Pool      *postgres.Pool
	TxManager tx.Manager

	Stocks      stock.Repository
	Ledger      stock.LedgerRepository
	Invoices    invoice.Repository
	Tickets     invoice.TicketUpdater
	Catalogs    catalog.Repository
	Events      invoice.EventPublisher
	Audit       invoice.StockAuditor
	Idempotency idempotency.Store
	Sequences   numerator.Allocator

	ensureTicket func(ctx context.Context, ticketID string) error
}

// OpenStorage connects the configured driver. For postgres it applies
// pending migrations when cfg.Database.Migrate is set.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return openMemory(ctx, cfg), nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Database.Driver)
	}
}

func openMemory(ctx context.Context, cfg *config.Config) *Storage {
	store := memory.New()
	logger.Warn(ctx, "using in-memory storage, data is lost on restart")
	return &Storage{
		Driver:      config.DriverMemory,
		TxManager:   store,
		Stocks:      store.Stocks(),
		Ledger:      store.Ledger(),
		Invoices:    store.Invoices(),
		Tickets:     store.Tickets(),
		Catalogs:    store.Catalogs(),
		Events:      store.Outbox(),
		Idempotency: memory.NewIdempotencyStore(cfg.Ledger.IdempotencyTTL),
		Sequences:   numerator.NewMemoryAllocator(),
		// Memory tickets are created on first write.
		ensureTicket: func(context.Context, string) error { return nil },
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Storage, error) {
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		StatementTimeout: cfg.Database.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	txm := postgres.NewTxManager(pool)
	audit, err := postgres.NewAuditService(txm, cfg.Ledger.AuditCompressThreshold)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit service: %w", err)
	}
	tickets := document_repo.NewTicketRepo(txm)

	return &Storage{
		Driver:      config.DriverPostgres,
		Pool:        pool,
		TxManager:   txm,
		Stocks:      register_repo.NewStockRepo(txm),
		Ledger:      register_repo.NewLedgerRepo(txm),
		Invoices:    document_repo.NewInvoiceRepo(txm),
		Tickets:     tickets,
		Catalogs:    catalog_repo.NewCatalogRepo(txm),
		Events:      postgres.NewOutboxPublisher(txm),
		Audit:       audit,
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.Ledger.IdempotencyTTL),
		Sequences:   numerator.NewPostgresAllocator(pool),
		ensureTicket: func(ctx context.Context, ticketID string) error {
			return txm.RunInTransaction(ctx, func(ctx context.Context) error {
				return tickets.EnsureTicket(ctx, ticketID)
			})
		},
	}, nil
}

// EnsureTicket makes ticketID known to the ticket table.
func (s *Storage) EnsureTicket(ctx context.Context, ticketID string) error {
	return s.ensureTicket(ctx, ticketID)
}

// Ping checks the database. The memory driver is always reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// Close releases database connections.
func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
