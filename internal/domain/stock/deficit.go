package stock

import (
	"fmt"
	"time"
)

// applyDeficit books remaining units against the item's deficit lot, creating
// it on first use. The deficit lot only ever grows more negative here.
func applyDeficit(it *Item, remaining int64, price Price, ref Ref) ConsumptionRecord {
	if lot := it.DeficitLot(); lot != nil {
		lot.Quantity -= remaining
		lot.Notes = fmt.Sprintf("Deficit increased by %d on %s (invoice %s)",
			remaining, ref.At.UTC().Format(time.RFC3339), ref.InvoiceRef)
	} else {
		it.Batches = append(it.Batches, Lot{
			BatchID:       DeficitBatchID,
			DateAdded:     ref.At,
			Quantity:      -remaining,
			PurchasePrice: price.Purchase,
			SellingPrice:  price.Selling,
			Notes: fmt.Sprintf("Consumed %d without available stock on %s (invoice %s); awaiting stock assignment",
				remaining, ref.At.UTC().Format(time.RFC3339), ref.InvoiceRef),
		})
	}

	return ConsumptionRecord{
		StockItemID:         it.ItemID,
		StockItemName:       it.ItemName,
		BatchID:             DeficitBatchID,
		Quantity:            remaining,
		PurchasePriceAtTime: price.Purchase,
		IsEstimated:         true,
	}
}
