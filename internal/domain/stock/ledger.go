package stock

import (
	"fmt"
	"time"

	"fieldledger/internal/core/id"
)

// TransactionType labels the origin of a ledger row.
type TransactionType string

// TransactionTypeInvoice marks consumption booked by a saved invoice.
const TransactionTypeInvoice TransactionType = "invoice"

// Transaction is an append-only ledger row. Rows are never updated or deleted.
// ID is assigned when the row is committed.
type Transaction struct {
	ID           id.ID           `json:"id" db:"id"`
	TechnicianID string          `json:"technicianId" db:"technician_id"`
	ItemType     ItemType        `json:"itemType" db:"item_type"`
	ItemID       string          `json:"itemId" db:"item_id"`
	ItemName     string          `json:"itemName" db:"item_name"`
	Quantity     int64           `json:"quantity" db:"quantity"`
	Type         TransactionType `json:"type" db:"type"`
	SourceID     string          `json:"sourceId" db:"source_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
	Notes        string          `json:"notes" db:"notes"`
}

// LedgerWriter collects the ledger rows of one operation. Rows are only
// handed to storage as part of the same commit that rewrites the stock.
type LedgerWriter struct {
	technicianID string
	sourceID     string
	at           time.Time
	rows         []Transaction
}

// NewLedgerWriter starts a row set for one invoice.
func NewLedgerWriter(technicianID, sourceID string, at time.Time) *LedgerWriter {
	return &LedgerWriter{technicianID: technicianID, sourceID: sourceID, at: at}
}

// Record appends one row for a processed requirement. The row carries the
// requested quantity whether or not positive stock covered it.
func (w *LedgerWriter) Record(c Consumption) {
	req := c.Requirement
	w.rows = append(w.rows, Transaction{
		TechnicianID: w.technicianID,
		ItemType:     req.Type,
		ItemID:       req.ID,
		ItemName:     req.Name,
		Quantity:     req.Quantity,
		Type:         TransactionTypeInvoice,
		SourceID:     w.sourceID,
		Timestamp:    w.at,
		Notes:        ledgerNote(c),
	})
}

// Rows returns the collected rows in processing order.
func (w *LedgerWriter) Rows() []Transaction {
	return w.rows
}

func ledgerNote(c Consumption) string {
	if c.Shortfall == 0 {
		return fmt.Sprintf("Consumed %d from stock", c.Requirement.Quantity)
	}
	return fmt.Sprintf("Consumed %d from stock, %d without available stock",
		c.Requirement.Quantity-c.Shortfall, c.Shortfall)
}
