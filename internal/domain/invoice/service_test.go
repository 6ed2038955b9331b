package invoice_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
	"fieldledger/internal/infrastructure/storage/memory"
)

var connectorNames = []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel"}

type staticCatalog struct{ c *catalog.Catalog }

func (s staticCatalog) Get(context.Context, string) (*catalog.Catalog, error) {
	return s.c.Clone(), nil
}

type counterNumbers struct {
	mu sync.Mutex
	n  int
}

func (g *counterNumbers) Next(_ context.Context, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("INV-%d-%05d", period.Year(), g.n), nil
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
	retries int
	deficit map[stock.ItemType]int64
}

func (o *recordingObserver) SaveFinished(r string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

func (o *recordingObserver) CommitRetried() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *recordingObserver) DeficitRecorded(t stock.ItemType, units int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deficit == nil {
		o.deficit = map[stock.ItemType]int64{}
	}
	o.deficit[t] += units
}

type fixture struct {
	store    *memory.Store
	observer *recordingObserver
	svc      *invoice.Service
	deps     invoice.Deps
}

func testCatalog() *catalog.Catalog {
	c := &catalog.Catalog{TeamID: "team-1"}
	for _, name := range connectorNames {
		c.Entries = append(c.Entries, catalog.Entry{
			ItemType:      stock.ItemTypeConnector,
			ItemID:        "conn-" + name,
			Name:          name,
			IsActive:      true,
			PurchasePrice: types.MustMoney("30"),
		})
	}
	c.Entries = append(c.Entries, catalog.Entry{
		ItemType: stock.ItemTypeDevice, ItemID: "onu", Name: "ONU", IsActive: true,
		PurchasePrice: types.MustMoney("1800"),
	})
	return c
}

func seedStock() *stock.TechnicianStock {
	s := &stock.TechnicianStock{TechnicianID: "tech-1", TeamID: "team-1"}
	for _, name := range connectorNames {
		s.Items = append(s.Items, stock.Item{
			ItemType: stock.ItemTypeConnector,
			ItemID:   "conn-" + name,
			ItemName: name,
			Quantity: 5,
			Batches: []stock.Lot{{
				BatchID:       "lot-" + name,
				DateAdded:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Quantity:      5,
				PurchasePrice: types.MustMoney("20"),
			}},
		})
	}
	s.Items = append(s.Items, stock.Item{
		ItemType: stock.ItemTypeDevice,
		ItemID:   "onu",
		ItemName: "ONU",
		Quantity: 1,
		Batches: []stock.Lot{{
			BatchID:       "lot-onu",
			DateAdded:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Quantity:      1,
			PurchasePrice: types.MustMoney("1500"),
		}},
	})
	return s
}

func newFixture(t *testing.T, mutate func(*invoice.Deps)) *fixture {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Stocks().Save(context.Background(), seedStock(), 0))

	obs := &recordingObserver{}
	deps := invoice.Deps{
		Stocks:    store.Stocks(),
		Ledger:    store.Ledger(),
		Invoices:  store.Invoices(),
		Tickets:   store.Tickets(),
		Events:    store.Outbox(),
		Catalogs:  staticCatalog{testCatalog()},
		Numbers:   &counterNumbers{},
		Observer:  obs,
		TxManager: store,
	}
	if mutate != nil {
		mutate(&deps)
	}
	cfg := invoice.DefaultConfig()
	cfg.MaxAttempts = 20
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return &fixture{store: store, observer: obs, svc: invoice.NewService(deps, cfg), deps: deps}
}

func connectorLine(names ...string) invoice.LineItem {
	return invoice.LineItem{
		Description: "Replace connectors",
		Kind:        invoice.KindMaintenance,
		Quantity:    1,
		UnitPrice:   types.MustMoney("200"),
		Details: invoice.Maintenance{
			MaintenanceType: invoice.MaintenanceConnectorReplacement,
			Connectors:      names,
		},
	}
}

func deviceLine() invoice.LineItem {
	return invoice.LineItem{
		Description: "Replace ONU",
		Kind:        invoice.KindMaintenance,
		Quantity:    1,
		UnitPrice:   types.MustMoney("2500"),
		Details:     invoice.Maintenance{MaintenanceType: invoice.MaintenanceDeviceReplacement, DeviceModel: "ONU"},
	}
}

func saveCmd(items ...invoice.LineItem) invoice.SaveCommand {
	return invoice.SaveCommand{
		TechnicianID:   "tech-1",
		TechnicianName: "Sam",
		TeamID:         "team-1",
		TicketID:       "ticket-1",
		Items:          items,
	}
}

func currentStock(t *testing.T, f *fixture) *stock.TechnicianStock {
	t.Helper()
	s, err := f.store.Stocks().Get(context.Background(), "tech-1")
	require.NoError(t, err)
	return s
}

func ledgerRows(t *testing.T, f *fixture) []stock.Transaction {
	t.Helper()
	rows, err := f.store.Ledger().List(context.Background(), stock.TransactionFilter{TechnicianID: "tech-1"})
	require.NoError(t, err)
	return rows
}

func TestService_Save_CommitsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res, err := f.svc.Save(ctx, saveCmd(connectorLine("Alpha", "Bravo"), deviceLine(), deviceLine()))
	require.NoError(t, err)
	inv := res.Invoice

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, invoice.StatusDraft, inv.Status)
	assert.Equal(t, fmt.Sprintf("INV-%d-00001", time.Now().UTC().Year()), inv.Number)
	assert.True(t, inv.TotalAmount.Equal(types.MustMoney("5200")), "total %s", inv.TotalAmount)
	// 2×20 + 1500 + 1800 (second ONU priced from catalog)
	assert.True(t, inv.PurchasePrice.Equal(types.MustMoney("3340")), "cost %s", inv.PurchasePrice)
	assert.True(t, inv.NeedsStockAssignment)
	require.Len(t, inv.Warnings, 1)
	assert.Equal(t, invoice.WarningInsufficientStock, inv.Warnings[0].Code)

	st := currentStock(t, f)
	assert.Equal(t, int64(2), st.Version)
	assert.Equal(t, int64(4), st.Find(stock.ItemTypeConnector, "conn-Alpha").Quantity)
	assert.Equal(t, int64(-1), st.Find(stock.ItemTypeDevice, "onu").DeficitLot().Quantity)

	rows := ledgerRows(t, f)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, inv.ID.String(), r.SourceID)
		assert.False(t, id.IsNil(r.ID))
	}

	stored, err := f.svc.Get(ctx, "tech-1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, stored.Number)

	ticket := f.store.Tickets().Get(ctx, "ticket-1")
	require.NotNil(t, ticket)
	assert.Equal(t, []id.ID{inv.ID}, ticket.InvoiceIDs)
	require.Len(t, ticket.Comments, 1)
	assert.Equal(t, "Sam", ticket.Comments[0].Author)
	assert.Equal(t, fmt.Sprintf("Invoice %s created with 3 item(s), total 5200.00", inv.Number), ticket.Comments[0].Text)

	events := f.store.Outbox().Events()
	require.Len(t, events, 1)
	assert.Equal(t, invoice.EventInvoiceSaved, events[0].EventType)
	assert.Equal(t, inv.ID, events[0].AggregateID)

	assert.Equal(t, []string{invoice.ResultSaved}, f.observer.results)
	assert.Equal(t, map[stock.ItemType]int64{stock.ItemTypeDevice: 1}, f.observer.deficit)
}

type failingTickets struct{}

func (failingTickets) AttachInvoice(context.Context, string, id.ID, invoice.Comment) error {
	return errors.New("ticket store offline")
}

func TestService_Save_FailedCommitLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(d *invoice.Deps) { d.Tickets = failingTickets{} })
	before := currentStock(t, f)

	_, err := f.svc.Save(ctx, saveCmd(connectorLine("Alpha"), deviceLine(), deviceLine()))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCommitFailed))

	assert.Equal(t, before, currentStock(t, f))
	assert.Empty(t, ledgerRows(t, f))
	list, err := f.svc.List(ctx, invoice.ListFilter{TechnicianID: "tech-1"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.store.Outbox().Events())
	assert.Equal(t, []string{invoice.ResultFailed}, f.observer.results)
}

// racingStocks lets another writer change the stock right after each of the
// first `races` reads.
type racingStocks struct {
	stock.Repository
	mu    sync.Mutex
	races int
}

func (r *racingStocks) Get(ctx context.Context, technicianID string) (*stock.TechnicianStock, error) {
	snapshot, err := r.Repository.Get(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	race := r.races > 0
	if race {
		r.races--
	}
	r.mu.Unlock()

	if race {
		competing := snapshot.Clone()
		item := competing.Find(stock.ItemTypeConnector, "conn-Hotel")
		item.Batches[0].Quantity--
		item.Quantity--
		if err := r.Repository.Save(ctx, competing, snapshot.Version); err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

func TestService_Save_RetriesAfterConcurrentChange(t *testing.T) {
	ctx := context.Background()
	var racing *racingStocks
	f := newFixture(t, func(d *invoice.Deps) {
		racing = &racingStocks{Repository: d.Stocks, races: 1}
		d.Stocks = racing
	})

	res, err := f.svc.Save(ctx, saveCmd(connectorLine("Alpha")))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, f.observer.retries)

	st := currentStock(t, f)
	assert.Equal(t, int64(3), st.Version, "seed, competing write, invoice")
	assert.Equal(t, int64(4), st.Find(stock.ItemTypeConnector, "conn-Alpha").Quantity)
	assert.Equal(t, int64(4), st.Find(stock.ItemTypeConnector, "conn-Hotel").Quantity, "competing write kept")
	assert.Len(t, ledgerRows(t, f), 1, "ledger written once")
}

func TestService_Save_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	racing := &racingStocks{Repository: f.deps.Stocks, races: 100}
	deps := f.deps
	deps.Stocks = racing
	cfg := invoice.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.RetryBackoff = 0
	svc := invoice.NewService(deps, cfg)

	_, err := svc.Save(ctx, saveCmd(connectorLine("Alpha")))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConcurrentModification, appErr.Code)
	assert.Equal(t, 3, appErr.Details["attempts"])

	assert.Equal(t, int64(5), currentStock(t, f).Find(stock.ItemTypeConnector, "conn-Alpha").Quantity)
	assert.Empty(t, ledgerRows(t, f))
	assert.Equal(t, 2, f.observer.retries)
	assert.Equal(t, []string{invoice.ResultConflict}, f.observer.results)
}

func TestService_Save_ConcurrentSavesKeepEveryDecrement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, len(connectorNames))
	for _, name := range connectorNames {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			cmd := saveCmd(connectorLine(name))
			cmd.TicketID = "ticket-" + name
			_, err := f.svc.Save(ctx, cmd)
			errs <- err
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	st := currentStock(t, f)
	assert.Equal(t, int64(1+len(connectorNames)), st.Version)
	for _, name := range connectorNames {
		assert.Equal(t, int64(4), st.Find(stock.ItemTypeConnector, "conn-"+name).Quantity, name)
	}
	assert.Len(t, ledgerRows(t, f), len(connectorNames))
}

func TestService_Preview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	cmd := invoice.PreviewCommand{
		TechnicianID: "tech-1",
		TeamID:       "team-1",
		Items:        []invoice.LineItem{connectorLine("Alpha", "Zulu"), deviceLine(), deviceLine()},
	}

	first, err := f.svc.Preview(ctx, cmd)
	require.NoError(t, err)
	second, err := f.svc.Preview(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.Warnings, second.Warnings)
	assert.True(t, first.NeedsStockAssignment)
	assert.Equal(t, int64(1), first.StockVersion)

	codes := []string{}
	for _, w := range first.Warnings {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{invoice.WarningUnresolvedItem, invoice.WarningInsufficientStock}, codes)

	assert.Equal(t, seedStock().Items, currentStock(t, f).Items)
	assert.Empty(t, ledgerRows(t, f))
}

func TestService_Save_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	numbers := &counterNumbers{}
	f := newFixture(t, func(d *invoice.Deps) { d.Numbers = numbers })

	cmd := saveCmd(invoice.LineItem{Kind: invoice.KindFee, Quantity: 1})
	_, err := f.svc.Save(ctx, cmd)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	cmd = saveCmd(connectorLine("Alpha"))
	cmd.TicketID = ""
	_, err = f.svc.Save(ctx, cmd)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	assert.Zero(t, numbers.n)
	assert.Equal(t, []string{invoice.ResultInvalid, invoice.ResultInvalid}, f.observer.results)
}

func TestService_Get_OtherTechnician(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	res, err := f.svc.Save(ctx, saveCmd(connectorLine("Alpha")))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "tech-2", res.Invoice.ID)
	assert.True(t, apperror.IsNotFound(err))
}
