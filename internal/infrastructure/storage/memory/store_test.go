package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
)

func TestStockRepo_VersionCheck(t *testing.T) {
	ctx := context.Background()
	store := New()
	repo := store.Stocks()

	empty, err := repo.Get(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Version)
	assert.Empty(t, empty.Items)

	doc := &stock.TechnicianStock{TechnicianID: "tech-1", TeamID: "team-1"}
	require.NoError(t, repo.Save(ctx, doc, 0))
	assert.Equal(t, int64(1), doc.Version)

	err = repo.Save(ctx, doc, 0)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(1), appErr.Details["actual_version"])

	got, err := repo.Get(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_RollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Stocks().Save(ctx, &stock.TechnicianStock{TechnicianID: "tech-1"}, 0))
		require.NoError(t, store.Ledger().Append(ctx, []stock.Transaction{{ID: id.New(), TechnicianID: "tech-1"}}))
		require.NoError(t, store.Invoices().Create(ctx, &invoice.Invoice{ID: id.New(), TechnicianID: "tech-1"}))
		require.NoError(t, store.Tickets().AttachInvoice(ctx, "ticket-1", id.New(), invoice.Comment{Text: "x"}))
		require.NoError(t, store.Outbox().Publish(ctx, invoice.Event{EventType: "invoice.saved"}))

		staged, err := store.Stocks().Get(ctx, "tech-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), staged.Version, "reads inside the transaction see staged writes")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := store.Stocks().Get(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Version)
	rows, err := store.Ledger().List(ctx, stock.TransactionFilter{TechnicianID: "tech-1"})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Nil(t, store.Tickets().Get(ctx, "ticket-1"))
	assert.Empty(t, store.Outbox().Events())
}

func TestStore_WritesOutsideTransaction(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.Ledger().Append(ctx, []stock.Transaction{{ID: id.New()}})
	assert.Error(t, err)
	err = store.Outbox().Publish(ctx, invoice.Event{})
	assert.Error(t, err)
}

func TestLedgerRepo_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	var rows []stock.Transaction
	for i := 0; i < 5; i++ {
		rows = append(rows, stock.Transaction{
			ID:           id.New(),
			TechnicianID: "tech-1",
			ItemID:       []string{"a", "b"}[i%2],
			Quantity:     int64(i + 1),
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
		})
	}
	rows = append(rows, stock.Transaction{ID: id.New(), TechnicianID: "tech-2", ItemID: "a", Timestamp: base})
	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context) error {
		return store.Ledger().Append(ctx, rows)
	}))

	all, err := store.Ledger().List(ctx, stock.TransactionFilter{TechnicianID: "tech-1"})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, int64(5), all[0].Quantity, "newest first")

	onlyA, err := store.Ledger().List(ctx, stock.TransactionFilter{TechnicianID: "tech-1", ItemID: "a"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 3)

	from := base.Add(2 * time.Hour)
	recent, err := store.Ledger().List(ctx, stock.TransactionFilter{TechnicianID: "tech-1", From: &from})
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	paged, err := store.Ledger().List(ctx, stock.TransactionFilter{TechnicianID: "tech-1", Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, int64(1), paged[0].Quantity)
}

func TestTicketRepo_AccumulatesInvoices(t *testing.T) {
	ctx := context.Background()
	store := New()
	first, second := id.New(), id.New()

	require.NoError(t, store.Tickets().AttachInvoice(ctx, "ticket-1", first, invoice.Comment{Text: "one"}))
	require.NoError(t, store.Tickets().AttachInvoice(ctx, "ticket-1", second, invoice.Comment{Text: "two"}))

	ticket := store.Tickets().Get(ctx, "ticket-1")
	require.NotNil(t, ticket)
	assert.Equal(t, []id.ID{first, second}, ticket.InvoiceIDs)
	assert.Len(t, ticket.Comments, 2)
}

func TestInvoiceRepo_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := New()
	inv := &invoice.Invoice{ID: id.New(), TechnicianID: "tech-1"}

	require.NoError(t, store.Invoices().Create(ctx, inv))
	err := store.Invoices().Create(ctx, inv)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	_, err = store.Invoices().GetByID(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestInvoiceRepo_ReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	inv := &invoice.Invoice{
		ID:           id.New(),
		TechnicianID: "tech-1",
		Items: []invoice.LineItem{{
			Description: "Install",
			Kind:        invoice.KindInstallation,
			Quantity:    1,
			Details:     invoice.Installation{Connectors: []string{"green-connector"}},
			BatchesUsed: []stock.ConsumptionRecord{{StockItemID: "green-connector", BatchID: "b1", Quantity: 1}},
		}},
	}
	require.NoError(t, store.Invoices().Create(ctx, inv))

	inv.Items[0].BatchesUsed[0].BatchID = "changed-after-create"

	got, err := store.Invoices().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "b1", got.Items[0].BatchesUsed[0].BatchID)

	got.Items[0].BatchesUsed[0].Quantity = 99
	got.Items[0].Details.(invoice.Installation).Connectors[0] = "blue-connector"

	again, err := store.Invoices().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Items[0].BatchesUsed[0].Quantity)
	assert.Equal(t, []string{"green-connector"}, again.Items[0].Details.(invoice.Installation).Connectors)

	listed, err := store.Invoices().List(ctx, invoice.ListFilter{TechnicianID: "tech-1"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Items[0].BatchesUsed[0].BatchID = "changed-in-list"

	again, err = store.Invoices().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "b1", again.Items[0].BatchesUsed[0].BatchID)
}
