// Package memory is an in-process storage driver. Transactions serialize on a
// single lock and stage their writes until commit, so a failed transaction
// leaves no trace.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/tx"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
)

var _ tx.Manager = (*Store)(nil)

// Ticket is the part of a ticket this service writes to.
type Ticket struct {
	ID         string
	InvoiceIDs []id.ID
	Comments   []invoice.Comment
}

// Store holds all data in memory.
type Store struct {
	mu       sync.Mutex
	stocks   map[string]*stock.TechnicianStock
	ledger   []stock.Transaction
	invoices map[id.ID]*invoice.Invoice
	tickets  map[string]*Ticket
	catalogs map[string]*catalog.Catalog
	events   []invoice.Event
}

// New creates an empty store.
func New() *Store {
	return &Store{
		stocks:   make(map[string]*stock.TechnicianStock),
		invoices: make(map[id.ID]*invoice.Invoice),
		tickets:  make(map[string]*Ticket),
		catalogs: make(map[string]*catalog.Catalog),
	}
}

type txKey struct{}

// staged collects the writes of one transaction.
type staged struct {
	stocks   map[string]*stock.TechnicianStock
	ledger   []stock.Transaction
	invoices []*invoice.Invoice
	tickets  map[string]*Ticket
	events   []invoice.Event
}

func stagedFrom(ctx context.Context) *staged {
	if st, ok := ctx.Value(txKey{}).(*staged); ok {
		return st
	}
	return nil
}

// RunInTransaction runs fn holding the store lock and applies its writes only
// if fn succeeds. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if stagedFrom(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &staged{
		stocks:  make(map[string]*stock.TechnicianStock),
		tickets: make(map[string]*Ticket),
	}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}

	for k, v := range st.stocks {
		s.stocks[k] = v
	}
	s.ledger = append(s.ledger, st.ledger...)
	for _, inv := range st.invoices {
		s.invoices[inv.ID] = inv
	}
	for k, v := range st.tickets {
		s.tickets[k] = v
	}
	s.events = append(s.events, st.events...)
	return nil
}

// read runs fn with the lock held unless ctx already owns it.
func (s *Store) read(ctx context.Context, fn func(st *staged)) {
	if st := stagedFrom(ctx); st != nil {
		fn(st)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(nil)
}

// Stocks returns the stock.Repository view of the store.
func (s *Store) Stocks() *StockRepo { return &StockRepo{s: s} }

// Ledger returns the stock.LedgerRepository view of the store.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Invoices returns the invoice.Repository view of the store.
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{s: s} }

// Tickets returns the invoice.TicketUpdater view of the store.
func (s *Store) Tickets() *TicketRepo { return &TicketRepo{s: s} }

// Catalogs returns the catalog.Repository view of the store.
func (s *Store) Catalogs() *CatalogRepo { return &CatalogRepo{s: s} }

// Outbox returns the invoice.EventPublisher view of the store.
func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }

// StockRepo implements stock.Repository.
type StockRepo struct{ s *Store }

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) Get(ctx context.Context, technicianID string) (*stock.TechnicianStock, error) {
	var out *stock.TechnicianStock
	r.s.read(ctx, func(st *staged) {
		cur := r.s.stocks[technicianID]
		if st != nil {
			if v, ok := st.stocks[technicianID]; ok {
				cur = v
			}
		}
		if cur != nil {
			out = cur.Clone()
		}
	})
	if out == nil {
		out = &stock.TechnicianStock{TechnicianID: technicianID, Items: []stock.Item{}}
	}
	return out, nil
}

func (r *StockRepo) Save(ctx context.Context, doc *stock.TechnicianStock, expectedVersion int64) error {
	st := stagedFrom(ctx)
	if st == nil {
		return r.s.RunInTransaction(ctx, func(ctx context.Context) error {
			return r.Save(ctx, doc, expectedVersion)
		})
	}

	cur, ok := st.stocks[doc.TechnicianID]
	if !ok {
		cur = r.s.stocks[doc.TechnicianID]
	}
	var version int64
	if cur != nil {
		version = cur.Version
	}
	if version != expectedVersion {
		return apperror.NewConcurrentModification("technician_stock", doc.TechnicianID).
			WithDetail("expected_version", expectedVersion).
			WithDetail("actual_version", version)
	}

	next := doc.Clone()
	next.Version = expectedVersion + 1
	st.stocks[doc.TechnicianID] = next
	doc.Version = next.Version
	return nil
}

// LedgerRepo implements stock.LedgerRepository.
type LedgerRepo struct{ s *Store }

var _ stock.LedgerRepository = (*LedgerRepo)(nil)

func (r *LedgerRepo) Append(ctx context.Context, rows []stock.Transaction) error {
	st := stagedFrom(ctx)
	if st == nil {
		return apperror.NewInternal(errNoTransaction("ledger append"))
	}
	st.ledger = append(st.ledger, rows...)
	return nil
}

func (r *LedgerRepo) List(ctx context.Context, f stock.TransactionFilter) ([]stock.Transaction, error) {
	var out []stock.Transaction
	r.s.read(ctx, func(*staged) {
		for _, row := range r.s.ledger {
			if row.TechnicianID != f.TechnicianID {
				continue
			}
			if f.ItemID != "" && row.ItemID != f.ItemID {
				continue
			}
			if f.From != nil && row.Timestamp.Before(*f.From) {
				continue
			}
			if f.To != nil && row.Timestamp.After(*f.To) {
				continue
			}
			out = append(out, row)
		}
	})
	// newest first, stable on insertion order
	slices.Reverse(out)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Timestamp.After(out[b].Timestamp) })
	return page(out, f.Offset, f.Limit), nil
}

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct{ s *Store }

var _ invoice.Repository = (*InvoiceRepo)(nil)

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	st := stagedFrom(ctx)
	if st == nil {
		return r.s.RunInTransaction(ctx, func(ctx context.Context) error { return r.Create(ctx, inv) })
	}
	if _, exists := r.s.invoices[inv.ID]; exists {
		return apperror.NewDuplicate("invoice", "id", inv.ID.String())
	}
	st.invoices = append(st.invoices, inv.Clone())
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	r.s.read(ctx, func(*staged) {
		if inv, ok := r.s.invoices[invoiceID]; ok {
			out = inv.Clone()
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("invoice", invoiceID)
	}
	return out, nil
}

func (r *InvoiceRepo) List(ctx context.Context, f invoice.ListFilter) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	r.s.read(ctx, func(*staged) {
		for _, inv := range r.s.invoices {
			if inv.TechnicianID != f.TechnicianID {
				continue
			}
			if f.TicketID != "" && inv.TicketID != f.TicketID {
				continue
			}
			out = append(out, *inv.Clone())
		}
	})
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID.String() > out[b].ID.String()
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return page(out, f.Offset, f.Limit), nil
}

// TicketRepo implements invoice.TicketUpdater. Tickets are created on first
// write since the ticket workflow lives outside this service.
type TicketRepo struct{ s *Store }

var _ invoice.TicketUpdater = (*TicketRepo)(nil)

func (r *TicketRepo) AttachInvoice(ctx context.Context, ticketID string, invoiceID id.ID, comment invoice.Comment) error {
	st := stagedFrom(ctx)
	if st == nil {
		return r.s.RunInTransaction(ctx, func(ctx context.Context) error {
			return r.AttachInvoice(ctx, ticketID, invoiceID, comment)
		})
	}
	t, ok := st.tickets[ticketID]
	if !ok {
		t = &Ticket{ID: ticketID}
		if cur, exists := r.s.tickets[ticketID]; exists {
			t.InvoiceIDs = slices.Clone(cur.InvoiceIDs)
			t.Comments = slices.Clone(cur.Comments)
		}
		st.tickets[ticketID] = t
	}
	t.InvoiceIDs = append(t.InvoiceIDs, invoiceID)
	t.Comments = append(t.Comments, comment)
	return nil
}

// Get returns a copy of a ticket or nil.
func (r *TicketRepo) Get(ctx context.Context, ticketID string) *Ticket {
	var out *Ticket
	r.s.read(ctx, func(*staged) {
		if t, ok := r.s.tickets[ticketID]; ok {
			out = &Ticket{ID: t.ID, InvoiceIDs: slices.Clone(t.InvoiceIDs), Comments: slices.Clone(t.Comments)}
		}
	})
	return out
}

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct{ s *Store }

var _ catalog.Repository = (*CatalogRepo)(nil)

func (r *CatalogRepo) GetByTeam(ctx context.Context, teamID string) (*catalog.Catalog, error) {
	var out *catalog.Catalog
	r.s.read(ctx, func(*staged) {
		if c, ok := r.s.catalogs[teamID]; ok {
			out = c.Clone()
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("catalog", teamID)
	}
	return out, nil
}

func (r *CatalogRepo) Save(ctx context.Context, c *catalog.Catalog) error {
	r.s.read(ctx, func(*staged) {
		r.s.catalogs[c.TeamID] = c.Clone()
	})
	return nil
}

// Outbox implements invoice.EventPublisher.
type Outbox struct{ s *Store }

var _ invoice.EventPublisher = (*Outbox)(nil)

func (o *Outbox) Publish(ctx context.Context, e invoice.Event) error {
	st := stagedFrom(ctx)
	if st == nil {
		return apperror.NewInternal(errNoTransaction("outbox publish"))
	}
	st.events = append(st.events, e)
	return nil
}

// Events returns the committed events in publish order.
func (o *Outbox) Events() []invoice.Event {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return slices.Clone(o.s.events)
}

func page[T any](items []T, offset, limit int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type errNoTransaction string

func (e errNoTransaction) Error() string {
	return string(e) + " requires a transaction"
}
