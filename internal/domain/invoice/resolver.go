package invoice

import (
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

// Resolution is the stock demand of one line item.
type Resolution struct {
	Requirements []stock.Requirement
	// Unresolved lists names with no catalog entry. They produce no requirement.
	Unresolved []Unresolved
	// Generic lists hook/bag demand booked against a placeholder id because
	// the catalog has no entry of that type.
	Generic []stock.ItemType
}

// Unresolved is a name that matched no catalog entry.
type Unresolved struct {
	ItemType stock.ItemType
	Name     string
}

// Resolver maps line items to stock requirements using a team catalog.
type Resolver struct {
	catalog *catalog.Catalog
}

// NewResolver creates a resolver over c.
func NewResolver(c *catalog.Catalog) *Resolver {
	if c == nil {
		c = &catalog.Catalog{}
	}
	return &Resolver{catalog: c}
}

// Resolve returns the requirements implied by item, in catalog-independent
// order: connectors, device, cable, hooks, bags.
func (r *Resolver) Resolve(item LineItem) Resolution {
	switch d := deref(item.Details).(type) {
	case Installation:
		return r.installation(d)
	case Maintenance:
		return r.maintenance(d)
	default:
		return Resolution{}
	}
}

func (r *Resolver) installation(d Installation) Resolution {
	var res Resolution
	for _, name := range d.Connectors {
		r.named(&res, stock.ItemTypeConnector, name, 1)
	}
	if d.DeviceModel != "" {
		r.named(&res, stock.ItemTypeDevice, d.DeviceModel, 1)
	}
	if d.CableLength != "" {
		r.named(&res, stock.ItemTypeCable, d.CableLength, 1)
	}
	if d.NumHooks > 0 {
		r.generic(&res, stock.ItemTypeHook, d.NumHooks)
	}
	if d.NumBags > 0 {
		r.generic(&res, stock.ItemTypeBag, d.NumBags)
	}
	return res
}

func (r *Resolver) maintenance(d Maintenance) Resolution {
	var res Resolution
	switch d.MaintenanceType {
	case MaintenanceCableReplacement:
		if d.CableLength != "" {
			r.named(&res, stock.ItemTypeCable, d.CableLength, 1)
		}
	case MaintenanceConnectorReplacement:
		for _, name := range d.Connectors {
			r.named(&res, stock.ItemTypeConnector, name, 1)
		}
	case MaintenanceDeviceReplacement:
		if d.DeviceModel != "" {
			r.named(&res, stock.ItemTypeDevice, d.DeviceModel, 1)
		}
	}
	return res
}

func (r *Resolver) named(res *Resolution, t stock.ItemType, name string, qty int64) {
	entry := r.catalog.ByName(t, name)
	if entry == nil {
		res.Unresolved = append(res.Unresolved, Unresolved{ItemType: t, Name: name})
		return
	}
	res.Requirements = append(res.Requirements, stock.Requirement{
		Type:     t,
		ID:       entry.ItemID,
		Name:     entry.Name,
		Quantity: qty,
	})
}

// generic resolves hooks and bags, which line items count but do not name.
func (r *Resolver) generic(res *Resolution, t stock.ItemType, qty int64) {
	entry := r.catalog.FirstActive(t)
	if entry == nil {
		entry = r.catalog.First(t)
	}
	if entry == nil {
		res.Generic = append(res.Generic, t)
		res.Requirements = append(res.Requirements, stock.Requirement{
			Type:     t,
			ID:       string(t),
			Name:     string(t),
			Quantity: qty,
		})
		return
	}
	res.Requirements = append(res.Requirements, stock.Requirement{
		Type:     t,
		ID:       entry.ItemID,
		Name:     entry.Name,
		Quantity: qty,
	})
}
