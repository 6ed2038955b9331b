package invoice

import (
	"time"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

// Input is everything the assembler reads. Stock is a snapshot and is not
// modified.
type Input struct {
	TechnicianID string
	// SourceID is stamped on ledger rows.
	SourceID string
	// Reference names the invoice in deficit lot notes.
	Reference string
	Stock     *stock.TechnicianStock
	Catalog   *catalog.Catalog
	Items     []LineItem
	At        time.Time
}

// Assembly is the full result of processing an invoice against a snapshot.
type Assembly struct {
	Items                []LineItem
	TotalAmount          types.Money
	PurchasePrice        types.Money
	NeedsStockAssignment bool
	// Stock is the rewritten item list, to replace the snapshot in full.
	Stock        []stock.Item
	Transactions []stock.Transaction
	Warnings     []Warning
}

// Assemble resolves and consumes every line item in order. It performs no
// I/O, so running it twice on the same input gives the same result.
func Assemble(in Input) Assembly {
	resolver := NewResolver(in.Catalog)
	price := catalog.NewPricer(in.Catalog).Price

	var snapshot []stock.Item
	if in.Stock != nil {
		snapshot = in.Stock.Items
	}
	sheet := stock.NewSheet(snapshot)
	ledger := stock.NewLedgerWriter(in.TechnicianID, in.SourceID, in.At)
	ref := stock.Ref{InvoiceRef: in.Reference, At: in.At}

	out := Assembly{
		Items:         make([]LineItem, len(in.Items)),
		TotalAmount:   types.Zero(),
		PurchasePrice: types.Zero(),
	}

	for k, item := range in.Items {
		line := item
		line.TotalPrice = types.Extend(item.UnitPrice, item.Quantity)
		line.PurchasePrice = types.Zero()
		line.BatchesUsed = nil
		line.HasPendingStock = false

		res := resolver.Resolve(item)
		for _, u := range res.Unresolved {
			out.Warnings = append(out.Warnings, Warning{
				Code:     WarningUnresolvedItem,
				Line:     k,
				ItemType: u.ItemType,
				ItemName: u.Name,
			})
		}
		for _, t := range res.Generic {
			out.Warnings = append(out.Warnings, Warning{
				Code:     WarningGenericItem,
				Line:     k,
				ItemType: t,
				ItemID:   string(t),
				ItemName: string(t),
			})
		}

		for _, req := range res.Requirements {
			c := sheet.Consume(req, price, ref)
			ledger.Record(c)

			line.PurchasePrice = line.PurchasePrice.Add(c.Cost)
			line.BatchesUsed = append(line.BatchesUsed, c.Records...)
			if c.Pending {
				line.HasPendingStock = true
				out.Warnings = append(out.Warnings, Warning{
					Code:      WarningInsufficientStock,
					Line:      k,
					ItemType:  req.Type,
					ItemID:    req.ID,
					ItemName:  req.Name,
					Required:  req.Quantity,
					Available: c.Available,
				})
			}
		}

		out.Items[k] = line
		out.TotalAmount = out.TotalAmount.Add(line.TotalPrice)
		out.PurchasePrice = out.PurchasePrice.Add(line.PurchasePrice)
		out.NeedsStockAssignment = out.NeedsStockAssignment || line.HasPendingStock
	}

	out.Stock = sheet.Items()
	out.Transactions = ledger.Rows()
	return out
}

// Shortfall totals the uncovered units per item type across insufficient
// stock warnings.
func (a Assembly) Shortfall() map[stock.ItemType]int64 {
	out := make(map[stock.ItemType]int64)
	for _, w := range a.Warnings {
		if w.Code == WarningInsufficientStock {
			out[w.ItemType] += w.Required - w.Available
		}
	}
	return out
}
