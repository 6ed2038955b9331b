package app

import (
	"context"
	"fmt"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

// demoQuantity is the per-item quantity of the demo stock.
const demoQuantity = 20

// SeedDemoStock gives technicianID a stock of every built-in catalog item,
// one lot each. An existing stock document is left untouched.
func SeedDemoStock(ctx context.Context, st *Storage, technicianID, teamID string) error {
	current, err := st.Stocks.Get(ctx, technicianID)
	if err != nil {
		return fmt.Errorf("read stock: %w", err)
	}
	if current.Version > 0 {
		return nil
	}

	now := time.Now().UTC()
	doc := &stock.TechnicianStock{TechnicianID: technicianID, TeamID: teamID, UpdatedAt: now}
	for _, e := range catalog.Builtin().Entries {
		item := stock.Item{
			ItemType:      e.ItemType,
			ItemID:        e.ItemID,
			ItemName:      e.Name,
			Quantity:      demoQuantity,
			PurchasePrice: e.PurchasePrice,
			LastUpdated:   now,
		}
		if e.ItemType.IsLotTracked() {
			item.Batches = []stock.Lot{{
				BatchID:       "seed-" + e.ItemID,
				DateAdded:     now,
				Quantity:      demoQuantity,
				PurchasePrice: e.PurchasePrice,
				SellingPrice:  e.SellingPrice,
				Notes:         "demo stock",
			}}
		}
		doc.Items = append(doc.Items, item)
	}

	err = st.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return st.Stocks.Save(ctx, doc, 0)
	})
	if apperror.IsConcurrentModification(err) {
		// Seeded concurrently by another process.
		return nil
	}
	return err
}

// SeedCatalog stores c as the team catalog.
func SeedCatalog(ctx context.Context, st *Storage, teamID string, c *catalog.Catalog) error {
	c = c.Clone()
	c.TeamID = teamID
	c.Default = false
	c.UpdatedAt = time.Now().UTC()
	if err := catalog.Validate(c); err != nil {
		return apperror.NewValidation(err.Error())
	}
	return st.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return st.Catalogs.Save(ctx, c)
	})
}
