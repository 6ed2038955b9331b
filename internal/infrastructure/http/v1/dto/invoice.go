package dto

import (
	"time"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
)

// --- Request DTOs ---

// SaveInvoiceRequest is the body of POST /invoices.
type SaveInvoiceRequest struct {
	TicketID string               `json:"ticketId" binding:"required"`
	Items    []InvoiceItemRequest `json:"items" binding:"required,min=1"`
}

// PreviewInvoiceRequest is the body of POST /invoices/preview.
type PreviewInvoiceRequest struct {
	Items []InvoiceItemRequest `json:"items" binding:"required,min=1"`
}

// ItemDetailsRequest carries the kind-specific fields of a line item. Mobile
// clients send them flat on the item, newer clients nest them under details.
type ItemDetailsRequest struct {
	MaintenanceType string   `json:"maintenanceType,omitempty"`
	Connectors      []string `json:"connectors,omitempty"`
	DeviceModel     string   `json:"deviceModel,omitempty"`
	CableLength     string   `json:"cableLength,omitempty"`
	NumHooks        int64    `json:"numHooks,omitempty"`
	NumBags         int64    `json:"numBags,omitempty"`
	Package         string   `json:"package,omitempty"`
	Months          int      `json:"months,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

type InvoiceItemRequest struct {
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
	ItemDetailsRequest
	Details *ItemDetailsRequest `json:"details,omitempty"`
}

// ToLineItem maps the request onto the line-item variant named by Type.
// Unknown types pass through without details and fail validation later.
func (r InvoiceItemRequest) ToLineItem() invoice.LineItem {
	d := r.ItemDetailsRequest
	if r.Details != nil {
		d = *r.Details
	}

	item := invoice.LineItem{
		Description: r.Description,
		Kind:        invoice.Kind(r.Type),
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
	}

	switch item.Kind {
	case invoice.KindInstallation:
		item.Details = invoice.Installation{
			Connectors:  d.Connectors,
			DeviceModel: d.DeviceModel,
			CableLength: d.CableLength,
			NumHooks:    d.NumHooks,
			NumBags:     d.NumBags,
		}
	case invoice.KindMaintenance:
		item.Details = invoice.Maintenance{
			MaintenanceType: invoice.MaintenanceType(d.MaintenanceType),
			Connectors:      d.Connectors,
			DeviceModel:     d.DeviceModel,
			CableLength:     d.CableLength,
		}
	case invoice.KindSubscription:
		item.Details = invoice.Subscription{Package: d.Package, Months: d.Months}
	case invoice.KindFee:
		item.Details = invoice.Fee{Reason: d.Reason}
	case invoice.KindReimbursement:
		item.Details = invoice.Reimbursement{Reason: d.Reason}
	case invoice.KindCustom:
		item.Details = invoice.Custom{}
	}
	return item
}

// ToLineItems maps every item in order.
func ToLineItems(items []InvoiceItemRequest) []invoice.LineItem {
	out := make([]invoice.LineItem, len(items))
	for k, it := range items {
		out[k] = it.ToLineItem()
	}
	return out
}

// --- Response DTOs ---

type LineItemResponse struct {
	Description     string                    `json:"description"`
	Type            string                    `json:"type"`
	Quantity        int64                     `json:"quantity"`
	UnitPrice       types.Money               `json:"unitPrice"`
	TotalPrice      types.Money               `json:"totalPrice"`
	PurchasePrice   types.Money               `json:"purchasePrice"`
	HasPendingStock bool                      `json:"hasPendingStock"`
	BatchesUsed     []stock.ConsumptionRecord `json:"batchesUsed"`
	Details         invoice.Details           `json:"details,omitempty"`
}

type InvoiceResponse struct {
	ID                   string             `json:"id"`
	Number               string             `json:"number"`
	TicketID             string             `json:"ticketId"`
	TechnicianID         string             `json:"technicianId"`
	Status               string             `json:"status"`
	Items                []LineItemResponse `json:"items"`
	TotalAmount          types.Money        `json:"totalAmount"`
	PurchasePrice        types.Money        `json:"purchasePrice"`
	NeedsStockAssignment bool               `json:"needsStockAssignment"`
	Warnings             []invoice.Warning  `json:"warnings"`
	CreatedAt            time.Time          `json:"createdAt"`
}

type PreviewResponse struct {
	Items                []LineItemResponse `json:"items"`
	TotalAmount          types.Money        `json:"totalAmount"`
	PurchasePrice        types.Money        `json:"purchasePrice"`
	NeedsStockAssignment bool               `json:"needsStockAssignment"`
	Warnings             []invoice.Warning  `json:"warnings"`
	StockVersion         int64              `json:"stockVersion"`
}

func FromLineItems(items []invoice.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(items))
	for k, it := range items {
		batches := it.BatchesUsed
		if batches == nil {
			batches = []stock.ConsumptionRecord{}
		}
		out[k] = LineItemResponse{
			Description:     it.Description,
			Type:            string(it.Kind),
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			TotalPrice:      it.TotalPrice,
			PurchasePrice:   it.PurchasePrice,
			HasPendingStock: it.HasPendingStock,
			BatchesUsed:     batches,
			Details:         it.Details,
		}
	}
	return out
}

func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                   inv.ID.String(),
		Number:               inv.Number,
		TicketID:             inv.TicketID,
		TechnicianID:         inv.TechnicianID,
		Status:               string(inv.Status),
		Items:                FromLineItems(inv.Items),
		TotalAmount:          inv.TotalAmount,
		PurchasePrice:        inv.PurchasePrice,
		NeedsStockAssignment: inv.NeedsStockAssignment,
		Warnings:             warningsOrEmpty(inv.Warnings),
		CreatedAt:            inv.CreatedAt,
	}
}

func FromPreview(p *invoice.Preview) PreviewResponse {
	return PreviewResponse{
		Items:                FromLineItems(p.Items),
		TotalAmount:          p.TotalAmount,
		PurchasePrice:        p.PurchasePrice,
		NeedsStockAssignment: p.NeedsStockAssignment,
		Warnings:             warningsOrEmpty(p.Warnings),
		StockVersion:         p.StockVersion,
	}
}

func warningsOrEmpty(w []invoice.Warning) []invoice.Warning {
	if w == nil {
		return []invoice.Warning{}
	}
	return w
}
