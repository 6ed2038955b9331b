package invoice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/types"
)

func TestLineItem_UnmarshalDispatchesOnType(t *testing.T) {
	body := `[
		{"description":"Install","type":"new_installation","quantity":1,"unitPrice":"5000",
		 "details":{"connectors":["SC/APC"],"deviceModel":"ONU Basic","numHooks":4}},
		{"description":"Fix","type":"maintenance","quantity":1,"unitPrice":"300",
		 "details":{"maintenanceType":"cable_replacement","cableLength":"50m"}},
		{"description":"Other","type":"custom","quantity":1,"unitPrice":"10"},
		{"description":"Fee","type":"fee","quantity":1,"unitPrice":"10"}
	]`

	var items []LineItem
	require.NoError(t, json.Unmarshal([]byte(body), &items))
	require.Len(t, items, 4)

	inst, ok := items[0].Details.(Installation)
	require.True(t, ok, "got %T", items[0].Details)
	assert.Equal(t, []string{"SC/APC"}, inst.Connectors)
	assert.Equal(t, int64(4), inst.NumHooks)

	maint, ok := items[1].Details.(Maintenance)
	require.True(t, ok)
	assert.Equal(t, MaintenanceCableReplacement, maint.MaintenanceType)

	assert.Equal(t, Custom{}, items[2].Details)
	assert.Equal(t, Fee{}, items[3].Details)

	// stored invoices decode back into the same variant
	raw, err := json.Marshal(items[0])
	require.NoError(t, err)
	var again LineItem
	require.NoError(t, json.Unmarshal(raw, &again))
	assert.Equal(t, items[0].Details, again.Details)
}

func TestValidateItems(t *testing.T) {
	valid := func() LineItem { return installationLine("GreenConnector") }

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateItems([]LineItem{valid(), feeLine()}))
	})

	t.Run("empty", func(t *testing.T) {
		err := ValidateItems(nil)
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	})

	t.Run("field errors", func(t *testing.T) {
		missing := valid()
		missing.Description = ""
		zero := feeLine()
		zero.Quantity = 0
		negative := feeLine()
		negative.UnitPrice = types.MustMoney("-1")
		badMaint := deviceReplacement()
		badMaint.Details = Maintenance{MaintenanceType: "rewire"}
		mismatch := feeLine()
		mismatch.Details = Installation{}
		badPtr := deviceReplacement()
		badPtr.Details = &Maintenance{MaintenanceType: "rewire"}

		err := ValidateItems([]LineItem{missing, zero, negative, badMaint, mismatch, badPtr})
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
		assert.Equal(t, "required", appErr.Details["items[0].description"])
		assert.Equal(t, "gte=1", appErr.Details["items[1].quantity"])
		assert.Equal(t, "gte=0", appErr.Details["items[2].unitPrice"])
		assert.Contains(t, appErr.Details, "items[3].details.maintenanceType")
		assert.Contains(t, appErr.Details, "items[4].details")
		assert.Contains(t, appErr.Details, "items[5].details.maintenanceType")
	})
}
