package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerWriter_RecordsRequestedQuantity(t *testing.T) {
	sheet := NewSheet([]Item{greenConnector()})
	w := NewLedgerWriter("tech-1", "invoice-1", now)

	w.Record(sheet.Consume(connectorReq(7), nil, ref))
	w.Record(sheet.Consume(connectorReq(20), fixedPrice("130", nil), ref))

	rows := w.Rows()
	require.Len(t, rows, 2)

	assert.Equal(t, int64(7), rows[0].Quantity)
	assert.Equal(t, "Consumed 7 from stock", rows[0].Notes)

	assert.Equal(t, int64(20), rows[1].Quantity)
	assert.Equal(t, "Consumed 8 from stock, 12 without available stock", rows[1].Notes)

	for _, r := range rows {
		assert.Equal(t, TransactionTypeInvoice, r.Type)
		assert.Equal(t, "tech-1", r.TechnicianID)
		assert.Equal(t, "invoice-1", r.SourceID)
		assert.Equal(t, "green-connector", r.ItemID)
		assert.Equal(t, now, r.Timestamp)
	}
}
