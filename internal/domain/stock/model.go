// Package stock holds a technician's lot-tracked inventory and the pure
// transformations that consume it: FIFO lot draining, deficit recording and
// ledger row emission.
package stock

import (
	"slices"
	"time"

	"fieldledger/internal/core/types"
)

// ItemType classifies consumable items.
type ItemType string

const (
	ItemTypeConnector ItemType = "connector"
	ItemTypeCable     ItemType = "cable"
	ItemTypeDevice    ItemType = "device"
	ItemTypePackage   ItemType = "package"
	ItemTypeHook      ItemType = "hook"
	ItemTypeBag       ItemType = "bag"
)

// ItemTypes lists every known item type.
var ItemTypes = []ItemType{
	ItemTypeConnector, ItemTypeCable, ItemTypeDevice,
	ItemTypePackage, ItemTypeHook, ItemTypeBag,
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return slices.Contains(ItemTypes, t)
}

// IsLotTracked reports whether items of this type are accounted by cost lots.
// Subscription packages carry only a scalar quantity.
func (t ItemType) IsLotTracked() bool {
	return t != ItemTypePackage
}

// DeficitBatchID is the reserved batch id of the synthetic negative lot that
// records stock consumed beyond what was physically available.
const DeficitBatchID = "DEFICIT"

// OpeningBatchID names the lot created from the scalar quantity of a
// lot-tracked item stored without lots.
const OpeningBatchID = "OPENING"

// Lot is a dated, priced quantity of one stock item.
type Lot struct {
	BatchID       string      `json:"batchId"`
	DateAdded     time.Time   `json:"dateAdded"`
	Quantity      int64       `json:"quantity"`
	PurchasePrice types.Money `json:"purchasePrice"`
	SellingPrice  types.Money `json:"sellingPrice"`
	Notes         string      `json:"notes,omitempty"`
}

// IsDeficit reports whether the lot is the reserved deficit lot.
func (l Lot) IsDeficit() bool {
	return l.BatchID == DeficitBatchID
}

// Item is one technician-owned stock record.
type Item struct {
	ItemType ItemType `json:"itemType"`
	ItemID   string   `json:"itemId"`
	ItemName string   `json:"itemName"`
	// Quantity is authoritative for simple items. For lot-tracked items it
	// mirrors the sum of Batches.
	Quantity int64 `json:"quantity"`
	// PurchasePrice is the stored unit cost of a simple item.
	PurchasePrice types.Money `json:"purchasePrice"`
	Batches       []Lot       `json:"batches,omitempty"`
	LastUpdated   time.Time   `json:"lastUpdated"`
}

// DeficitLot returns the item's deficit lot or nil.
func (i *Item) DeficitLot() *Lot {
	for k := range i.Batches {
		if i.Batches[k].IsDeficit() {
			return &i.Batches[k]
		}
	}
	return nil
}

// PositiveQuantity is the stock physically available for consumption. Only
// lots count for lot-tracked items.
func (i *Item) PositiveQuantity() int64 {
	if !i.ItemType.IsLotTracked() {
		return max(i.Quantity, 0)
	}
	var total int64
	for _, l := range i.Batches {
		if !l.IsDeficit() && l.Quantity > 0 {
			total += l.Quantity
		}
	}
	return total
}

// adoptQuantity turns the scalar quantity of a lot-tracked item without lots
// into a single lot at the stored purchase price. A negative quantity
// becomes the deficit lot.
func (i *Item) adoptQuantity() {
	if !i.ItemType.IsLotTracked() || len(i.Batches) > 0 || i.Quantity == 0 {
		return
	}
	batchID := OpeningBatchID
	if i.Quantity < 0 {
		batchID = DeficitBatchID
	}
	i.Batches = []Lot{{
		BatchID:       batchID,
		DateAdded:     i.LastUpdated,
		Quantity:      i.Quantity,
		PurchasePrice: i.PurchasePrice,
	}}
}

func (i *Item) recount() {
	if !i.ItemType.IsLotTracked() {
		return
	}
	var total int64
	for _, l := range i.Batches {
		total += l.Quantity
	}
	i.Quantity = total
}

func (i Item) clone() Item {
	c := i
	if i.Batches != nil {
		c.Batches = slices.Clone(i.Batches)
	}
	return c
}

// TechnicianStock is the single document holding all of a technician's stock.
// It is always rewritten in full; Version guards the conditional write.
type TechnicianStock struct {
	TechnicianID string    `json:"technicianId"`
	TeamID       string    `json:"teamId"`
	Items        []Item    `json:"items"`
	Version      int64     `json:"version"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a deep copy that shares no slices with s.
func (s *TechnicianStock) Clone() *TechnicianStock {
	c := *s
	c.Items = make([]Item, len(s.Items))
	for k, it := range s.Items {
		c.Items[k] = it.clone()
	}
	return &c
}

// Find returns the item with the given identity or nil.
func (s *TechnicianStock) Find(itemType ItemType, itemID string) *Item {
	for k := range s.Items {
		if s.Items[k].ItemType == itemType && s.Items[k].ItemID == itemID {
			return &s.Items[k]
		}
	}
	return nil
}

// Requirement is the demand one invoice line places on a stock item.
type Requirement struct {
	Type     ItemType `json:"type"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Quantity int64    `json:"quantity"`
}

// ConsumptionRecord describes quantity drawn from one lot.
// IsEstimated marks the portion covered by the deficit lot.
type ConsumptionRecord struct {
	StockItemID         string      `json:"stockItemId"`
	StockItemName       string      `json:"stockItemName"`
	BatchID             string      `json:"batchId"`
	Quantity            int64       `json:"quantity"`
	PurchasePriceAtTime types.Money `json:"purchasePriceAtTime"`
	IsEstimated         bool        `json:"isEstimated"`
}

// Price is a unit purchase/selling price pair.
type Price struct {
	Purchase types.Money `json:"purchase"`
	Selling  types.Money `json:"selling"`
}

// PriceFunc estimates a unit price for an item when its own lots cannot.
type PriceFunc func(itemType ItemType, itemID string) Price
