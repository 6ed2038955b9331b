// Package catalog provides the team item catalog: canonical definitions of
// consumable items and the fallback prices derived from them.
package catalog

import (
	"slices"
	"strings"
	"time"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/stock"
)

// Entry is one catalog item definition. Batches are optional; entries
// without lots are priced from the scalar fields.
type Entry struct {
	ItemType      stock.ItemType `json:"itemType"`
	ItemID        string         `json:"itemId"`
	Name          string         `json:"name"`
	IsActive      bool           `json:"isActive"`
	Batches       []stock.Lot    `json:"batches,omitempty"`
	PurchasePrice types.Money    `json:"purchasePrice"`
	// Price is the legacy name of PurchasePrice, still present in older catalogs.
	Price        types.Money `json:"price"`
	SellingPrice types.Money `json:"sellingPrice"`
}

// Catalog is the set of item definitions configured for a team.
type Catalog struct {
	TeamID    string    `json:"teamId"`
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
	// Default is set when the catalog is the configured fallback rather than
	// the team's stored one.
	Default bool `json:"default"`
}

// Clone returns a deep copy of c.
func (c *Catalog) Clone() *Catalog {
	out := *c
	out.Entries = make([]Entry, len(c.Entries))
	for k, e := range c.Entries {
		out.Entries[k] = e
		out.Entries[k].Batches = slices.Clone(e.Batches)
	}
	return &out
}

// ByID returns the entry with the exact type and id, or nil.
func (c *Catalog) ByID(t stock.ItemType, itemID string) *Entry {
	for k := range c.Entries {
		if c.Entries[k].ItemType == t && c.Entries[k].ItemID == itemID {
			return &c.Entries[k]
		}
	}
	return nil
}

// ByName returns the first entry of type t whose name matches, ignoring case
// and surrounding whitespace. Active entries win over inactive ones.
func (c *Catalog) ByName(t stock.ItemType, name string) *Entry {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	var inactive *Entry
	for k := range c.Entries {
		e := &c.Entries[k]
		if e.ItemType != t || !strings.EqualFold(strings.TrimSpace(e.Name), name) {
			continue
		}
		if e.IsActive {
			return e
		}
		if inactive == nil {
			inactive = e
		}
	}
	return inactive
}

// FirstActive returns the first active entry of type t, or nil.
func (c *Catalog) FirstActive(t stock.ItemType) *Entry {
	for k := range c.Entries {
		if c.Entries[k].ItemType == t && c.Entries[k].IsActive {
			return &c.Entries[k]
		}
	}
	return nil
}

// First returns the first entry of type t regardless of state, or nil.
func (c *Catalog) First(t stock.ItemType) *Entry {
	for k := range c.Entries {
		if c.Entries[k].ItemType == t {
			return &c.Entries[k]
		}
	}
	return nil
}

// OfType returns entries of type t in catalog order.
func (c *Catalog) OfType(t stock.ItemType) []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.ItemType == t {
			out = append(out, e)
		}
	}
	return out
}
