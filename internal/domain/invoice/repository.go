package invoice

import (
	"context"
	"time"

	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

// Repository persists invoices.
type Repository interface {
	// Create inserts a new invoice. Must run inside the commit transaction.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	// List returns invoices matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
}

// TicketUpdater performs the ticket-side effect of a save: append the invoice
// id and an audit comment. The ticket itself belongs to the ticketing feature.
type TicketUpdater interface {
	AttachInvoice(ctx context.Context, ticketID string, invoiceID id.ID, comment Comment) error
}

// Event is a domain event published through the outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher stores events for asynchronous delivery in the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// StockAuditor records the before and after state of a stock rewrite.
type StockAuditor interface {
	RecordStockChange(ctx context.Context, invoiceID id.ID, before, after *stock.TechnicianStock) error
}

// CatalogSource returns the catalog to resolve against.
type CatalogSource interface {
	Get(ctx context.Context, teamID string) (*catalog.Catalog, error)
}

// NumberGenerator issues invoice numbers.
type NumberGenerator interface {
	Next(ctx context.Context, period time.Time) (string, error)
}

// Locker takes a best-effort exclusive lock. Correctness never depends on
// it; the conditional stock write does.
type Locker interface {
	// Obtain returns a release func. ok is false when the lock is held
	// elsewhere or the backend is unavailable.
	Obtain(ctx context.Context, key string) (release func(), ok bool)
}

// Observer receives save outcomes, typically for metrics.
type Observer interface {
	SaveFinished(result string)
	CommitRetried()
	DeficitRecorded(itemType stock.ItemType, units int64)
}
