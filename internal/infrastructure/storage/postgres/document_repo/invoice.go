// Package document_repo provides PostgreSQL storage for invoices and the
// ticket records they are attached to.
package document_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/infrastructure/storage/postgres"
)

const invoiceTable = "invoices"

type invoiceRow struct {
	ID                   id.ID           `db:"id"`
	Number               string          `db:"number"`
	TicketID             string          `db:"ticket_id"`
	TechnicianID         string          `db:"technician_id"`
	TeamID               string          `db:"team_id"`
	Status               string          `db:"status"`
	Items                json.RawMessage `db:"items"`
	TotalAmount          types.Money     `db:"total_amount"`
	PurchasePrice        types.Money     `db:"purchase_price"`
	NeedsStockAssignment bool            `db:"needs_stock_assignment"`
	Warnings             json.RawMessage `db:"warnings"`
	CreatedAt            time.Time       `db:"created_at"`
}

var invoiceColumns = postgres.Columns[invoiceRow]()

func (row invoiceRow) toDomain() (*invoice.Invoice, error) {
	inv := &invoice.Invoice{
		ID:                   row.ID,
		Number:               row.Number,
		TicketID:             row.TicketID,
		TechnicianID:         row.TechnicianID,
		TeamID:               row.TeamID,
		Status:               invoice.Status(row.Status),
		TotalAmount:          row.TotalAmount,
		PurchasePrice:        row.PurchasePrice,
		NeedsStockAssignment: row.NeedsStockAssignment,
		CreatedAt:            row.CreatedAt,
	}
	if err := json.Unmarshal(row.Items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	if len(row.Warnings) > 0 {
		if err := json.Unmarshal(row.Warnings, &inv.Warnings); err != nil {
			return nil, fmt.Errorf("decode invoice warnings: %w", err)
		}
	}
	return inv, nil
}

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create implements invoice.Repository.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encode invoice items: %w", err)
	}
	warnings, err := json.Marshal(inv.Warnings)
	if err != nil {
		return fmt.Errorf("encode invoice warnings: %w", err)
	}

	row := invoiceRow{
		ID:                   inv.ID,
		Number:               inv.Number,
		TicketID:             inv.TicketID,
		TechnicianID:         inv.TechnicianID,
		TeamID:               inv.TeamID,
		Status:               string(inv.Status),
		Items:                items,
		TotalAmount:          inv.TotalAmount,
		PurchasePrice:        inv.PurchasePrice,
		NeedsStockAssignment: inv.NeedsStockAssignment,
		Warnings:             warnings,
		CreatedAt:            inv.CreatedAt,
	}
	sql, args, err := r.builder.Insert(invoiceTable).
		SetMap(postgres.RowMap(row)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert invoice: %w", err))
	}
	return nil
}

// GetByID implements invoice.Repository.
func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	sql, args, err := r.builder.Select(invoiceColumns...).
		From(invoiceTable).
		Where(squirrel.Eq{"id": invoiceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row invoiceRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID)
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return row.toDomain()
}

// List implements invoice.Repository.
func (r *InvoiceRepo) List(ctx context.Context, f invoice.ListFilter) ([]invoice.Invoice, error) {
	q := r.builder.Select(invoiceColumns...).
		From(invoiceTable).
		Where(squirrel.Eq{"technician_id": f.TechnicianID}).
		OrderBy("created_at DESC", "id DESC")
	if f.TicketID != "" {
		q = q.Where(squirrel.Eq{"ticket_id": f.TicketID})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []invoiceRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}

	out := make([]invoice.Invoice, 0, len(rows))
	for _, row := range rows {
		inv, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, nil
}
