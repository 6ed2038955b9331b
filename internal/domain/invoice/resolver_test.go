package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

func TestResolver_Installation(t *testing.T) {
	r := NewResolver(testCatalog())

	res := r.Resolve(LineItem{Kind: KindInstallation, Details: Installation{
		Connectors:  []string{"GreenConnector", "blueconnector", "GreenConnector"},
		DeviceModel: "ONU Basic",
		CableLength: "50m",
		NumHooks:    6,
		NumBags:     2,
	}})

	require.Empty(t, res.Unresolved)
	assert.Equal(t, []stock.Requirement{
		{Type: stock.ItemTypeConnector, ID: "green-connector", Name: "GreenConnector", Quantity: 1},
		{Type: stock.ItemTypeConnector, ID: "blue-connector", Name: "BlueConnector", Quantity: 1},
		{Type: stock.ItemTypeConnector, ID: "green-connector", Name: "GreenConnector", Quantity: 1},
		{Type: stock.ItemTypeDevice, ID: "onu-basic", Name: "ONU Basic", Quantity: 1},
		{Type: stock.ItemTypeCable, ID: "cable-50m", Name: "50m", Quantity: 1},
		{Type: stock.ItemTypeHook, ID: "hook-std", Name: "Hook", Quantity: 6},
		{Type: stock.ItemTypeBag, ID: "bag-std", Name: "Bag", Quantity: 2},
	}, res.Requirements)
}

func TestResolver_UnknownNamesAreReported(t *testing.T) {
	r := NewResolver(testCatalog())

	res := r.Resolve(LineItem{Kind: KindInstallation, Details: Installation{
		Connectors:  []string{"PurpleConnector", "GreenConnector"},
		DeviceModel: "ONU Quantum",
	}})

	require.Len(t, res.Requirements, 1)
	assert.Equal(t, "green-connector", res.Requirements[0].ID)
	assert.Equal(t, []Unresolved{
		{ItemType: stock.ItemTypeConnector, Name: "PurpleConnector"},
		{ItemType: stock.ItemTypeDevice, Name: "ONU Quantum"},
	}, res.Unresolved)
}

func TestResolver_Maintenance(t *testing.T) {
	r := NewResolver(testCatalog())
	details := Maintenance{
		Connectors:  []string{"GreenConnector", "BlueConnector"},
		DeviceModel: "ONU Basic",
		CableLength: "50m",
	}

	cases := []struct {
		name string
		typ  MaintenanceType
		want []string
	}{
		{"cable replacement", MaintenanceCableReplacement, []string{"cable-50m"}},
		{"connector replacement", MaintenanceConnectorReplacement, []string{"green-connector", "blue-connector"}},
		{"device replacement", MaintenanceDeviceReplacement, []string{"onu-basic"}},
		{"manual", MaintenanceManual, nil},
		{"custom", MaintenanceCustom, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := details
			d.MaintenanceType = tc.typ

			res := r.Resolve(LineItem{Kind: KindMaintenance, Details: d})

			var got []string
			for _, req := range res.Requirements {
				got = append(got, req.ID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolver_PointerDetails(t *testing.T) {
	r := NewResolver(testCatalog())

	t.Run("installation", func(t *testing.T) {
		item := LineItem{Description: "Install", Kind: KindInstallation, Quantity: 1, Details: &Installation{NumHooks: 3}}
		require.NoError(t, ValidateItems([]LineItem{item}))

		res := r.Resolve(item)
		assert.Equal(t, []stock.Requirement{
			{Type: stock.ItemTypeHook, ID: "hook-std", Name: "Hook", Quantity: 3},
		}, res.Requirements)
	})

	t.Run("maintenance", func(t *testing.T) {
		res := r.Resolve(LineItem{Kind: KindMaintenance, Details: &Maintenance{
			MaintenanceType: MaintenanceDeviceReplacement,
			DeviceModel:     "ONU Basic",
		}})
		require.Len(t, res.Requirements, 1)
		assert.Equal(t, "onu-basic", res.Requirements[0].ID)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var d *Installation
		assert.Empty(t, r.Resolve(LineItem{Kind: KindInstallation, Details: d}).Requirements)
	})
}

func TestResolver_NonStockKinds(t *testing.T) {
	r := NewResolver(testCatalog())
	for _, item := range []LineItem{
		feeLine(),
		{Kind: KindReimbursement, Details: Reimbursement{}},
		{Kind: KindSubscription, Details: Subscription{Package: "Monthly", Months: 3}},
		{Kind: KindCustom, Details: Custom{}},
		{Kind: KindInstallation},
	} {
		assert.Empty(t, r.Resolve(item).Requirements, "kind %s", item.Kind)
	}
}

func TestResolver_GenericHooksAndBags(t *testing.T) {
	t.Run("inactive only", func(t *testing.T) {
		c := &catalog.Catalog{Entries: []catalog.Entry{
			{ItemType: stock.ItemTypeHook, ItemID: "hook-old", Name: "Old", IsActive: false},
		}}
		res := NewResolver(c).Resolve(LineItem{Kind: KindInstallation, Details: Installation{NumHooks: 2}})

		require.Len(t, res.Requirements, 1)
		assert.Equal(t, "hook-old", res.Requirements[0].ID)
		assert.Empty(t, res.Generic)
	})

	t.Run("no entries", func(t *testing.T) {
		res := NewResolver(nil).Resolve(LineItem{Kind: KindInstallation, Details: Installation{NumBags: 3}})

		require.Len(t, res.Requirements, 1)
		assert.Equal(t, stock.Requirement{Type: stock.ItemTypeBag, ID: "bag", Name: "bag", Quantity: 3}, res.Requirements[0])
		assert.Equal(t, []stock.ItemType{stock.ItemTypeBag}, res.Generic)
	})
}
