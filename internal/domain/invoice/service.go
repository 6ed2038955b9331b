package invoice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/tx"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/stock"
	"fieldledger/pkg/logger"
)

var tracer = otel.Tracer("fieldledger/invoice")

// Save outcomes reported to Observer.
const (
	ResultSaved    = "saved"
	ResultConflict = "conflict"
	ResultFailed   = "failed"
	ResultInvalid  = "invalid"
)

// EventInvoiceSaved is published once per committed invoice.
const EventInvoiceSaved = "invoice.saved"

const backoffCeiling = 5 * time.Second

// Config tunes the save operation.
type Config struct {
	// MaxAttempts bounds how often a save is recomputed after a concurrent
	// stock change.
	MaxAttempts  int
	RetryBackoff time.Duration
	// MaxBackoff caps a single retry wait. Zero means backoffCeiling.
	MaxBackoff time.Duration
	// CommentTemplate is the ticket comment. Placeholders: {number}, {items},
	// {total}, {cost}.
	CommentTemplate string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		RetryBackoff:    20 * time.Millisecond,
		MaxBackoff:      500 * time.Millisecond,
		CommentTemplate: "Invoice {number} created with {items} item(s), total {total}",
	}
}

// Deps are the collaborators of Service. Events, Audit, Locker and Observer
// are optional.
type Deps struct {
	Stocks    stock.Repository
	Ledger    stock.LedgerRepository
	Invoices  Repository
	Tickets   TicketUpdater
	Events    EventPublisher
	Audit     StockAuditor
	Catalogs  CatalogSource
	Numbers   NumberGenerator
	Locker    Locker
	Observer  Observer
	TxManager tx.Manager
}

// Service saves invoices and the stock consumption they imply.
type Service struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

// NewService creates an invoice service.
func NewService(deps Deps, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.CommentTemplate == "" {
		cfg.CommentTemplate = DefaultConfig().CommentTemplate
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Service{deps: deps, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// SaveCommand asks to resolve and commit stock consumption for line items.
type SaveCommand struct {
	TechnicianID   string
	TechnicianName string
	TeamID         string
	TicketID       string
	Items          []LineItem
}

// SaveResult is a committed invoice.
type SaveResult struct {
	Invoice  *Invoice
	Attempts int
}

// Save processes cmd against a fresh stock snapshot and commits the rewritten
// stock, ledger rows, invoice, ticket update and outbox event in one
// transaction. If another save changed the stock in between, the whole
// computation is redone from a new snapshot. On failure nothing is written.
func (s *Service) Save(ctx context.Context, cmd SaveCommand) (*SaveResult, error) {
	ctx, span := tracer.Start(ctx, "invoice.save", trace.WithAttributes(
		attribute.String("technician.id", cmd.TechnicianID),
		attribute.Int("invoice.lines", len(cmd.Items)),
	))
	defer span.End()

	if err := cmd.validate(); err != nil {
		s.deps.Observer.SaveFinished(ResultInvalid)
		return nil, err
	}

	if s.deps.Locker != nil {
		if release, ok := s.deps.Locker.Obtain(ctx, "stock:"+cmd.TechnicianID); ok {
			defer release()
		} else {
			logger.Debug(ctx, "stock lock not obtained, relying on conditional write")
		}
	}

	number, err := s.deps.Numbers.Next(ctx, s.now())
	if err != nil {
		s.deps.Observer.SaveFinished(ResultFailed)
		return nil, apperror.NewCommitFailed(fmt.Errorf("next invoice number: %w", err))
	}
	invoiceID := id.New()

	for attempt := 1; ; attempt++ {
		inv, asm, err := s.attempt(ctx, cmd, invoiceID, number)
		if err == nil {
			s.deps.Observer.SaveFinished(ResultSaved)
			for t, units := range asm.Shortfall() {
				s.deps.Observer.DeficitRecorded(t, units)
			}
			span.SetAttributes(attribute.Int("invoice.attempts", attempt))
			logger.Info(ctx, "invoice saved",
				"invoice_id", inv.ID,
				"number", inv.Number,
				"attempts", attempt,
				"needs_stock_assignment", inv.NeedsStockAssignment,
			)
			return &SaveResult{Invoice: inv, Attempts: attempt}, nil
		}

		span.RecordError(err)
		if !apperror.IsConcurrentModification(err) {
			s.deps.Observer.SaveFinished(ResultFailed)
			span.SetStatus(codes.Error, "save failed")
			logger.Warn(ctx, "invoice save failed", "number", number, "error", err)
			if _, ok := apperror.AsAppError(err); ok {
				return nil, err
			}
			return nil, apperror.NewCommitFailed(err)
		}

		if attempt >= s.cfg.MaxAttempts {
			s.deps.Observer.SaveFinished(ResultConflict)
			span.SetStatus(codes.Error, "conflict retries exhausted")
			logger.Warn(ctx, "invoice save gave up after concurrent stock changes",
				"number", number, "attempts", attempt)
			return nil, apperror.NewConcurrentModification("technician_stock", cmd.TechnicianID).
				WithDetail("attempts", attempt).
				WithCause(err)
		}

		s.deps.Observer.CommitRetried()
		logger.Info(ctx, "stock changed concurrently, recomputing invoice", "number", number, "attempt", attempt)
		if err := sleep(ctx, s.backoff(attempt)); err != nil {
			s.deps.Observer.SaveFinished(ResultFailed)
			return nil, apperror.NewCommitFailed(err)
		}
	}
}

func (s *Service) attempt(ctx context.Context, cmd SaveCommand, invoiceID id.ID, number string) (*Invoice, Assembly, error) {
	snapshot, err := s.deps.Stocks.Get(ctx, cmd.TechnicianID)
	if err != nil {
		return nil, Assembly{}, fmt.Errorf("read stock: %w", err)
	}
	cat, err := s.deps.Catalogs.Get(ctx, cmd.TeamID)
	if err != nil {
		return nil, Assembly{}, fmt.Errorf("read catalog: %w", err)
	}

	at := s.now()
	asm := Assemble(Input{
		TechnicianID: cmd.TechnicianID,
		SourceID:     invoiceID.String(),
		Reference:    number,
		Stock:        snapshot,
		Catalog:      cat,
		Items:        cmd.Items,
		At:           at,
	})

	teamID := snapshot.TeamID
	if teamID == "" {
		teamID = cmd.TeamID
	}
	next := &stock.TechnicianStock{
		TechnicianID: cmd.TechnicianID,
		TeamID:       teamID,
		Items:        asm.Stock,
		Version:      snapshot.Version,
		UpdatedAt:    at,
	}

	inv := &Invoice{
		ID:                   invoiceID,
		Number:               number,
		TicketID:             cmd.TicketID,
		TechnicianID:         cmd.TechnicianID,
		TeamID:               cmd.TeamID,
		Status:               StatusDraft,
		Items:                asm.Items,
		TotalAmount:          asm.TotalAmount,
		PurchasePrice:        asm.PurchasePrice,
		NeedsStockAssignment: asm.NeedsStockAssignment,
		Warnings:             asm.Warnings,
		CreatedAt:            at,
	}

	rows := asm.Transactions
	for k := range rows {
		rows[k].ID = id.New()
	}

	err = s.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.deps.Stocks.Save(ctx, next, snapshot.Version); err != nil {
			return fmt.Errorf("save stock: %w", err)
		}
		if err := s.deps.Ledger.Append(ctx, rows); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		if err := s.deps.Invoices.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		if s.deps.Tickets != nil {
			comment := Comment{Author: cmd.TechnicianName, Text: s.comment(inv), At: at}
			if err := s.deps.Tickets.AttachInvoice(ctx, cmd.TicketID, inv.ID, comment); err != nil {
				return fmt.Errorf("attach invoice to ticket: %w", err)
			}
		}
		if s.deps.Audit != nil {
			if err := s.deps.Audit.RecordStockChange(ctx, inv.ID, snapshot, next); err != nil {
				return fmt.Errorf("audit stock change: %w", err)
			}
		}
		if s.deps.Events != nil {
			if err := s.deps.Events.Publish(ctx, Event{
				AggregateType: "invoice",
				AggregateID:   inv.ID,
				EventType:     EventInvoiceSaved,
				Payload:       newSavedPayload(inv, len(rows)),
			}); err != nil {
				return fmt.Errorf("publish event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, asm, err
	}
	return inv, asm, nil
}

// PreviewCommand asks for a dry run of a save.
type PreviewCommand struct {
	TechnicianID string
	TeamID       string
	Items        []LineItem
}

// Preview is the computed invoice without any write.
type Preview struct {
	Items                []LineItem  `json:"items"`
	TotalAmount          types.Money `json:"totalAmount"`
	PurchasePrice        types.Money `json:"purchasePrice"`
	NeedsStockAssignment bool        `json:"needsStockAssignment"`
	Warnings             []Warning   `json:"warnings"`
	StockVersion         int64       `json:"stockVersion"`
}

// Preview computes what Save would do against the current stock so shortages
// can be reviewed before committing.
func (s *Service) Preview(ctx context.Context, cmd PreviewCommand) (*Preview, error) {
	if cmd.TechnicianID == "" || cmd.TeamID == "" {
		return nil, apperror.NewValidation("technician and team are required")
	}
	if err := ValidateItems(cmd.Items); err != nil {
		return nil, err
	}

	snapshot, err := s.deps.Stocks.Get(ctx, cmd.TechnicianID)
	if err != nil {
		return nil, fmt.Errorf("read stock: %w", err)
	}
	cat, err := s.deps.Catalogs.Get(ctx, cmd.TeamID)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	asm := Assemble(Input{
		TechnicianID: cmd.TechnicianID,
		Reference:    "preview",
		Stock:        snapshot,
		Catalog:      cat,
		Items:        cmd.Items,
		At:           s.now(),
	})
	return &Preview{
		Items:                asm.Items,
		TotalAmount:          asm.TotalAmount,
		PurchasePrice:        asm.PurchasePrice,
		NeedsStockAssignment: asm.NeedsStockAssignment,
		Warnings:             asm.Warnings,
		StockVersion:         snapshot.Version,
	}, nil
}

// Get returns one of the technician's invoices.
func (s *Service) Get(ctx context.Context, technicianID string, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.deps.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.TechnicianID != technicianID {
		return nil, apperror.NewNotFound("invoice", invoiceID)
	}
	return inv, nil
}

// List returns the technician's invoices, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	if filter.TechnicianID == "" {
		return nil, apperror.NewValidation("technician id is required")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	invoices, err := s.deps.Invoices.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (c SaveCommand) validate() error {
	switch {
	case c.TechnicianID == "":
		return apperror.NewValidation("technician id is required")
	case c.TeamID == "":
		return apperror.NewValidation("team id is required")
	case c.TicketID == "":
		return apperror.NewValidation("ticket id is required")
	}
	return ValidateItems(c.Items)
}

func (s *Service) comment(inv *Invoice) string {
	return strings.NewReplacer(
		"{number}", inv.Number,
		"{items}", strconv.Itoa(len(inv.Items)),
		"{total}", inv.TotalAmount.StringFixed(2),
		"{cost}", inv.PurchasePrice.StringFixed(2),
	).Replace(s.cfg.CommentTemplate)
}

// backoff grows exponentially with full jitter on the upper half.
func (s *Service) backoff(attempt int) time.Duration {
	if s.cfg.RetryBackoff <= 0 {
		return 0
	}
	limit := s.cfg.MaxBackoff
	if limit <= 0 {
		limit = backoffCeiling
	}
	d := s.cfg.RetryBackoff << (max(attempt, 1) - 1)
	if d <= 0 || d > limit {
		d = limit
	}
	half := d / 2
	return half + rand.N(half+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type savedPayload struct {
	InvoiceID            string `json:"invoiceId"`
	Number               string `json:"number"`
	TicketID             string `json:"ticketId"`
	TechnicianID         string `json:"technicianId"`
	TotalAmount          string `json:"totalAmount"`
	PurchasePrice        string `json:"purchasePrice"`
	NeedsStockAssignment bool   `json:"needsStockAssignment"`
	LedgerRows           int    `json:"ledgerRows"`
}

func newSavedPayload(inv *Invoice, rows int) savedPayload {
	return savedPayload{
		InvoiceID:            inv.ID.String(),
		Number:               inv.Number,
		TicketID:             inv.TicketID,
		TechnicianID:         inv.TechnicianID,
		TotalAmount:          inv.TotalAmount.String(),
		PurchasePrice:        inv.PurchasePrice.String(),
		NeedsStockAssignment: inv.NeedsStockAssignment,
		LedgerRows:           rows,
	}
}

type nopObserver struct{}

func (nopObserver) SaveFinished(string)                   {}
func (nopObserver) CommitRetried()                        {}
func (nopObserver) DeficitRecorded(stock.ItemType, int64) {}
