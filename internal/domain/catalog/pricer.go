package catalog

import (
	"slices"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/stock"
)

// Pricer estimates unit prices from a catalog for stock a technician's own
// lots cannot cover.
type Pricer struct {
	catalog *Catalog
}

// NewPricer creates a pricer over c. A nil catalog prices everything at zero.
func NewPricer(c *Catalog) *Pricer {
	return &Pricer{catalog: c}
}

// Price returns the estimated purchase and selling price of one unit.
func (p *Pricer) Price(t stock.ItemType, itemID string) stock.Price {
	zero := stock.Price{Purchase: types.Zero(), Selling: types.Zero()}
	if p.catalog == nil {
		return zero
	}

	entry := p.catalog.ByID(t, itemID)
	if entry == nil && (t == stock.ItemTypeHook || t == stock.ItemTypeBag) {
		entry = p.genericEntry(t)
	}
	if entry == nil {
		return zero
	}

	if price, ok := lotPrice(entry.Batches); ok {
		return price
	}
	return scalarPrice(entry)
}

// genericEntry resolves hook and bag placeholders: the first active entry
// with a priced lot, otherwise the first entry of the type.
func (p *Pricer) genericEntry(t stock.ItemType) *Entry {
	for k := range p.catalog.Entries {
		e := &p.catalog.Entries[k]
		if e.ItemType != t || !e.IsActive {
			continue
		}
		for _, l := range e.Batches {
			if l.PurchasePrice.IsPositive() {
				return e
			}
		}
	}
	return p.catalog.First(t)
}

// lotPrice prefers the oldest lot still holding stock, which is what would be
// drawn next. Without one it uses the most recent lot that carried a price.
func lotPrice(batches []stock.Lot) (stock.Price, bool) {
	if len(batches) == 0 {
		return stock.Price{}, false
	}
	lots := slices.Clone(batches)
	slices.SortStableFunc(lots, func(a, b stock.Lot) int {
		return a.DateAdded.Compare(b.DateAdded)
	})

	for _, l := range lots {
		if !l.IsDeficit() && l.Quantity > 0 {
			return stock.Price{Purchase: l.PurchasePrice, Selling: l.SellingPrice}, true
		}
	}
	for k := len(lots) - 1; k >= 0; k-- {
		if lots[k].PurchasePrice.IsPositive() {
			return stock.Price{Purchase: lots[k].PurchasePrice, Selling: lots[k].SellingPrice}, true
		}
	}
	return stock.Price{}, false
}

func scalarPrice(e *Entry) stock.Price {
	purchase := e.PurchasePrice
	if purchase.IsZero() {
		purchase = e.Price
	}
	return stock.Price{Purchase: purchase, Selling: e.SellingPrice}
}
