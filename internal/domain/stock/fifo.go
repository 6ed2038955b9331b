package stock

import (
	"slices"
	"time"

	"fieldledger/internal/core/types"
)

// Ref identifies the operation consuming stock. It is written into deficit
// lot notes and item timestamps.
type Ref struct {
	InvoiceRef string
	At         time.Time
}

// Consumption is the outcome of satisfying one requirement.
type Consumption struct {
	Requirement Requirement
	Records     []ConsumptionRecord
	Cost        types.Money
	// Available is the positive stock present before consumption.
	Available int64
	// Shortfall is the part of the requirement not covered by positive stock.
	Shortfall int64
	// Pending is set when the line needs a later stock assignment.
	Pending bool
}

// Sheet is a private working copy of a technician's items. Consumption
// mutates the sheet only, never the snapshot it was built from.
type Sheet struct {
	items []*Item
}

// NewSheet deep-copies items into a new working sheet.
func NewSheet(items []Item) *Sheet {
	s := &Sheet{items: make([]*Item, len(items))}
	for k, it := range items {
		c := it.clone()
		s.items[k] = &c
	}
	return s
}

// Items returns a deep copy of the sheet contents.
func (s *Sheet) Items() []Item {
	out := make([]Item, len(s.items))
	for k, it := range s.items {
		out[k] = it.clone()
	}
	return out
}

// item returns the stock item for req, creating it empty on first use.
func (s *Sheet) item(req Requirement) *Item {
	for _, it := range s.items {
		if it.ItemType == req.Type && it.ItemID == req.ID {
			return it
		}
	}
	it := &Item{
		ItemType: req.Type,
		ItemID:   req.ID,
		ItemName: req.Name,
		Batches:  []Lot{},
	}
	s.items = append(s.items, it)
	return it
}

// Consume satisfies req from the sheet. Lot-tracked items are drained oldest
// lot first; whatever positive lots cannot cover goes to the deficit lot.
// Simple items are decremented directly and may go negative.
// fallback is only called when a price must be estimated.
func (s *Sheet) Consume(req Requirement, fallback PriceFunc, ref Ref) Consumption {
	it := s.item(req)
	it.adoptQuantity()
	c := Consumption{
		Requirement: req,
		Cost:        types.Zero(),
		Available:   it.PositiveQuantity(),
	}

	if !req.Type.IsLotTracked() {
		consumeSimple(it, req, fallback, &c)
	} else {
		consumeLots(it, req, fallback, ref, &c)
	}

	it.LastUpdated = ref.At
	return c
}

func consumeSimple(it *Item, req Requirement, fallback PriceFunc, c *Consumption) {
	unit := it.PurchasePrice
	if unit.IsZero() && fallback != nil {
		unit = fallback(req.Type, req.ID).Purchase
	}

	it.Quantity -= req.Quantity
	c.Cost = types.Extend(unit, req.Quantity)
	if c.Available < req.Quantity {
		c.Shortfall = req.Quantity - c.Available
		c.Pending = true
	}
}

func consumeLots(it *Item, req Requirement, fallback PriceFunc, ref Ref, c *Consumption) {
	sortLots(it.Batches)

	remaining := req.Quantity
	for k := range it.Batches {
		if remaining == 0 {
			break
		}
		lot := &it.Batches[k]
		if lot.IsDeficit() || lot.Quantity <= 0 {
			continue
		}

		taken := min(lot.Quantity, remaining)
		lot.Quantity -= taken
		remaining -= taken

		c.Cost = c.Cost.Add(types.Extend(lot.PurchasePrice, taken))
		c.Records = append(c.Records, ConsumptionRecord{
			StockItemID:         it.ItemID,
			StockItemName:       it.ItemName,
			BatchID:             lot.BatchID,
			Quantity:            taken,
			PurchasePriceAtTime: lot.PurchasePrice,
		})
	}

	if remaining > 0 {
		var price Price
		if fallback != nil {
			price = fallback(req.Type, req.ID)
		}
		rec := applyDeficit(it, remaining, price, ref)
		c.Records = append(c.Records, rec)
		c.Cost = c.Cost.Add(types.Extend(price.Purchase, remaining))
		c.Shortfall = remaining
		c.Pending = true
	}

	it.recount()
}

// sortLots orders lots by acquisition date, oldest first. Ties keep their
// stored order.
func sortLots(lots []Lot) {
	slices.SortStableFunc(lots, func(a, b Lot) int {
		return a.DateAdded.Compare(b.DateAdded)
	})
}
