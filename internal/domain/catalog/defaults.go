package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/stock"
)

// Builtin returns the catalog shipped with the service. It is used as the
// fallback when no file is configured.
func Builtin() *Catalog {
	entry := func(t stock.ItemType, id, name, purchase, selling string) Entry {
		return Entry{
			ItemType:      t,
			ItemID:        id,
			Name:          name,
			IsActive:      true,
			PurchasePrice: types.MustMoney(purchase),
			SellingPrice:  types.MustMoney(selling),
		}
	}
	return &Catalog{
		Default: true,
		Entries: []Entry{
			entry(stock.ItemTypeConnector, "connector-sc-apc", "SC/APC", "25", "40"),
			entry(stock.ItemTypeConnector, "connector-sc-upc", "SC/UPC", "25", "40"),
			entry(stock.ItemTypeConnector, "connector-lc-apc", "LC/APC", "30", "45"),
			entry(stock.ItemTypeCable, "cable-50m", "50m", "300", "450"),
			entry(stock.ItemTypeCable, "cable-100m", "100m", "550", "800"),
			entry(stock.ItemTypeCable, "cable-150m", "150m", "800", "1150"),
			entry(stock.ItemTypeDevice, "device-onu-basic", "ONU Basic", "1800", "2500"),
			entry(stock.ItemTypeDevice, "device-onu-dual-band", "ONU Dual Band", "2600", "3500"),
			entry(stock.ItemTypePackage, "package-monthly", "Monthly", "0", "0"),
			entry(stock.ItemTypeHook, "hook", "Hook", "5", "10"),
			entry(stock.ItemTypeBag, "bag", "Bag", "15", "25"),
		},
	}
}

// LoadFile reads a JSON catalog used as the default for teams without one.
// An empty path yields Builtin.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read default catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode default catalog %s: %w", path, err)
	}
	if err := Validate(&c); err != nil {
		return nil, fmt.Errorf("default catalog %s: %w", path, err)
	}
	c.Default = true
	return &c, nil
}

// Validate checks entry types and id uniqueness.
func Validate(c *Catalog) error {
	seen := make(map[string]struct{}, len(c.Entries))
	for k, e := range c.Entries {
		if !e.ItemType.Valid() {
			return fmt.Errorf("entry %d: unknown item type %q", k, e.ItemType)
		}
		if e.ItemID == "" {
			return fmt.Errorf("entry %d: item id is required", k)
		}
		key := string(e.ItemType) + "/" + e.ItemID
		if _, dup := seen[key]; dup {
			return fmt.Errorf("entry %d: duplicate item %s", k, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
