package invoice

import (
	"time"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

var (
	jan1 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	at   = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
)

func testCatalog() *catalog.Catalog {
	e := func(t stock.ItemType, id, name string, active bool, purchase string) catalog.Entry {
		return catalog.Entry{
			ItemType:      t,
			ItemID:        id,
			Name:          name,
			IsActive:      active,
			PurchasePrice: types.MustMoney(purchase),
			SellingPrice:  types.MustMoney(purchase).Add(types.MustMoney("10")),
		}
	}
	return &catalog.Catalog{TeamID: "team-1", Entries: []catalog.Entry{
		e(stock.ItemTypeConnector, "green-connector", "GreenConnector", true, "130"),
		e(stock.ItemTypeConnector, "blue-connector", "BlueConnector", true, "90"),
		e(stock.ItemTypeDevice, "onu-basic", "ONU Basic", true, "1800"),
		e(stock.ItemTypeCable, "cable-50m", "50m", true, "300"),
		e(stock.ItemTypeHook, "hook-retired", "Retired hook", false, "2"),
		e(stock.ItemTypeHook, "hook-std", "Hook", true, "5"),
		e(stock.ItemTypeBag, "bag-std", "Bag", true, "15"),
	}}
}

func testStock() *stock.TechnicianStock {
	return &stock.TechnicianStock{
		TechnicianID: "tech-1",
		TeamID:       "team-1",
		Version:      3,
		Items: []stock.Item{
			{
				ItemType: stock.ItemTypeConnector,
				ItemID:   "green-connector",
				ItemName: "GreenConnector",
				Quantity: 15,
				Batches: []stock.Lot{
					{BatchID: "g1", DateAdded: jan1, Quantity: 5, PurchasePrice: types.MustMoney("100"), SellingPrice: types.MustMoney("150")},
					{BatchID: "g2", DateAdded: feb1, Quantity: 10, PurchasePrice: types.MustMoney("120"), SellingPrice: types.MustMoney("170")},
				},
			},
			{
				ItemType: stock.ItemTypeDevice,
				ItemID:   "onu-basic",
				ItemName: "ONU Basic",
				Quantity: 2,
				Batches: []stock.Lot{
					{BatchID: "d1", DateAdded: jan1, Quantity: 2, PurchasePrice: types.MustMoney("1700"), SellingPrice: types.MustMoney("2500")},
				},
			},
			{
				ItemType: stock.ItemTypeHook,
				ItemID:   "hook-std",
				ItemName: "Hook",
				Quantity: 100,
				Batches: []stock.Lot{
					{BatchID: "h1", DateAdded: jan1, Quantity: 100, PurchasePrice: types.MustMoney("4"), SellingPrice: types.MustMoney("8")},
				},
			},
		},
	}
}

func installationLine(connectors ...string) LineItem {
	return LineItem{
		Description: "New installation",
		Kind:        KindInstallation,
		Quantity:    1,
		UnitPrice:   types.MustMoney("5000"),
		Details: Installation{
			Connectors:  connectors,
			DeviceModel: "ONU Basic",
			NumHooks:    4,
		},
	}
}

func feeLine() LineItem {
	return LineItem{
		Description: "Visit fee",
		Kind:        KindFee,
		Quantity:    2,
		UnitPrice:   types.MustMoney("250"),
		Details:     Fee{Reason: "after hours"},
	}
}
