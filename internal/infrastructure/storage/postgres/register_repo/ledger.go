package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fieldledger/internal/domain/stock"
	"fieldledger/internal/infrastructure/storage/postgres"
)

const ledgerTable = "stock_transactions"

var ledgerColumns = postgres.Columns[stock.Transaction]()

// LedgerRepo implements stock.LedgerRepository.
type LedgerRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

var _ stock.LedgerRepository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append implements stock.LedgerRepository using COPY.
func (r *LedgerRepo) Append(ctx context.Context, rows []stock.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, 0, len(rows))
	for k := range rows {
		values = append(values, postgres.RowValues(&rows[k]))
	}
	if _, err := r.inserter.CopyFromSlice(ctx, ledgerTable, ledgerColumns, values); err != nil {
		return fmt.Errorf("copy ledger rows: %w", err)
	}
	return nil
}

// List implements stock.LedgerRepository.
func (r *LedgerRepo) List(ctx context.Context, f stock.TransactionFilter) ([]stock.Transaction, error) {
	q := r.builder.Select(quoted(ledgerColumns)...).
		From(ledgerTable).
		Where(squirrel.Eq{"technician_id": f.TechnicianID}).
		OrderBy(`"timestamp" DESC`, "id DESC")
	if f.ItemID != "" {
		q = q.Where(squirrel.Eq{"item_id": f.ItemID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{`"timestamp"`: *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{`"timestamp"`: *f.To})
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

	var rows []stock.Transaction
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger rows: %w", err)
	}
	return rows, nil
}

func quoted(cols []string) []string {
	out := make([]string, len(cols))
	for k, c := range cols {
		out[k] = `"` + c + `"`
	}
	return out
}
