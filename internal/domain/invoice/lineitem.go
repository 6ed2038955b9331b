package invoice

import (
	"encoding/json"
	"fmt"
	"slices"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/stock"
)

// Kind is the line-item variant tag.
type Kind string

const (
	KindInstallation  Kind = "new_installation"
	KindMaintenance   Kind = "maintenance"
	KindSubscription  Kind = "subscription_renewal"
	KindFee           Kind = "fee"
	KindReimbursement Kind = "reimbursement"
	KindCustom        Kind = "custom"
)

// MaintenanceType selects which part of a maintenance line consumes stock.
type MaintenanceType string

const (
	MaintenanceCableReplacement     MaintenanceType = "cable_replacement"
	MaintenanceConnectorReplacement MaintenanceType = "connector_replacement"
	MaintenanceDeviceReplacement    MaintenanceType = "device_replacement"
	MaintenanceManual               MaintenanceType = "manual"
	MaintenanceCustom               MaintenanceType = "custom"
)

// Details holds the kind-specific attributes of a line item. The set of
// implementations is closed.
type Details interface {
	Kind() Kind
	isDetails()
}

// Installation is a new customer installation.
type Installation struct {
	Connectors  []string `json:"connectors,omitempty"`
	DeviceModel string   `json:"deviceModel,omitempty"`
	CableLength string   `json:"cableLength,omitempty"`
	NumHooks    int64    `json:"numHooks,omitempty" validate:"gte=0"`
	NumBags     int64    `json:"numBags,omitempty" validate:"gte=0"`
}

// Maintenance is a repair visit. Only the part named by MaintenanceType
// consumes stock.
type Maintenance struct {
	MaintenanceType MaintenanceType `json:"maintenanceType" validate:"required,oneof=cable_replacement connector_replacement device_replacement manual custom"`
	Connectors      []string        `json:"connectors,omitempty"`
	DeviceModel     string          `json:"deviceModel,omitempty"`
	CableLength     string          `json:"cableLength,omitempty"`
}

// Subscription renews a service package.
type Subscription struct {
	Package string `json:"package,omitempty"`
	Months  int    `json:"months,omitempty" validate:"gte=0"`
}

// Fee is a service charge.
type Fee struct {
	Reason string `json:"reason,omitempty"`
}

// Reimbursement repays an expense.
type Reimbursement struct {
	Reason string `json:"reason,omitempty"`
}

// Custom is a free-text item.
type Custom struct{}

func (Installation) Kind() Kind  { return KindInstallation }
func (Maintenance) Kind() Kind   { return KindMaintenance }
func (Subscription) Kind() Kind  { return KindSubscription }
func (Fee) Kind() Kind           { return KindFee }
func (Reimbursement) Kind() Kind { return KindReimbursement }
func (Custom) Kind() Kind        { return KindCustom }

func (Installation) isDetails()  {}
func (Maintenance) isDetails()   {}
func (Subscription) isDetails()  {}
func (Fee) isDetails()           {}
func (Reimbursement) isDetails() {}
func (Custom) isDetails()        {}

// LineItem is one invoice line. The trailing fields are filled in by
// processing and are ignored on input.
type LineItem struct {
	Description string      `json:"description" validate:"required"`
	Kind        Kind        `json:"type" validate:"required,oneof=new_installation maintenance subscription_renewal fee reimbursement custom"`
	Quantity    int64       `json:"quantity" validate:"gte=1"`
	UnitPrice   types.Money `json:"unitPrice"`
	TotalPrice  types.Money `json:"totalPrice"`
	Details     Details     `json:"details,omitempty" validate:"-"`

	PurchasePrice   types.Money               `json:"purchasePrice"`
	BatchesUsed     []stock.ConsumptionRecord `json:"batchesUsed,omitempty"`
	HasPendingStock bool                      `json:"hasPendingStock"`
}

// UnmarshalJSON decodes details into the variant named by the type tag.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	var raw struct {
		plain
		Details json.RawMessage `json:"details,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = LineItem(raw.plain)

	details, err := decodeDetails(l.Kind, raw.Details)
	if err != nil {
		return err
	}
	l.Details = details
	return nil
}

func decodeDetails(kind Kind, raw json.RawMessage) (Details, error) {
	var d Details
	switch kind {
	case KindInstallation:
		d = &Installation{}
	case KindMaintenance:
		d = &Maintenance{}
	case KindSubscription:
		d = &Subscription{}
	case KindFee:
		d = &Fee{}
	case KindReimbursement:
		d = &Reimbursement{}
	case KindCustom:
		return Custom{}, nil
	default:
		return nil, nil
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", kind, err)
		}
	}
	return deref(d), nil
}

// deref normalises pointer variants to values so type switches match on
// value types. A nil pointer yields nil.
func deref(d Details) Details {
	switch v := d.(type) {
	case *Installation:
		if v == nil {
			return nil
		}
		return *v
	case *Maintenance:
		if v == nil {
			return nil
		}
		return *v
	case *Subscription:
		if v == nil {
			return nil
		}
		return *v
	case *Fee:
		if v == nil {
			return nil
		}
		return *v
	case *Reimbursement:
		if v == nil {
			return nil
		}
		return *v
	case *Custom:
		if v == nil {
			return nil
		}
		return *v
	}
	return d
}

func cloneDetails(d Details) Details {
	switch v := deref(d).(type) {
	case Installation:
		v.Connectors = slices.Clone(v.Connectors)
		return v
	case Maintenance:
		v.Connectors = slices.Clone(v.Connectors)
		return v
	default:
		return v
	}
}

// Clone returns a deep copy of the line. Pointer details come back as values.
func (l LineItem) Clone() LineItem {
	l.Details = cloneDetails(l.Details)
	l.BatchesUsed = slices.Clone(l.BatchesUsed)
	return l
}
