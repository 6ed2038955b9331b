package document_repo

import (
	"context"
	"errors"
	"fmt"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/infrastructure/storage/postgres"
)

// TicketRepo implements invoice.TicketUpdater against the tickets and
// ticket_comments tables.
type TicketRepo struct {
	batch *postgres.BatchExecutor
}

var _ invoice.TicketUpdater = (*TicketRepo)(nil)

// NewTicketRepo creates a new ticket repository.
func NewTicketRepo(txManager *postgres.TxManager) *TicketRepo {
	return &TicketRepo{batch: postgres.NewBatchExecutor(txManager)}
}

// AttachInvoice appends the invoice id and the comment in one round-trip.
// A missing ticket is NOT_FOUND and aborts the enclosing save.
func (r *TicketRepo) AttachInvoice(ctx context.Context, ticketID string, invoiceID id.ID, comment invoice.Comment) error {
	err := r.batch.ExecuteBatch(ctx, []postgres.BatchQuery{
		{
			SQL: `UPDATE tickets
			      SET invoice_ids = array_append(invoice_ids, $1), updated_at = $2
			      WHERE id = $3`,
			Args:       []any{invoiceID, comment.At, ticketID},
			MustAffect: true,
		},
		{
			SQL: `INSERT INTO ticket_comments (id, ticket_id, author, body, created_at)
			      VALUES ($1, $2, $3, $4, $5)`,
			Args: []any{id.New(), ticketID, comment.Author, comment.Text, comment.At},
		},
	})
	var none postgres.ErrNoRowsAffected
	if errors.As(err, &none) {
		return apperror.NewNotFound("ticket", ticketID)
	}
	if err != nil {
		return fmt.Errorf("attach invoice to ticket: %w", err)
	}
	return nil
}

// EnsureTicket creates an empty ticket if it does not exist. Used by seeding
// and by deployments where this service owns the ticket table.
func (r *TicketRepo) EnsureTicket(ctx context.Context, ticketID string) error {
	return r.batch.ExecuteBatch(ctx, []postgres.BatchQuery{{
		SQL:  `INSERT INTO tickets (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		Args: []any{ticketID},
	}})
}
