// Package invoice turns invoice line items into stock consumption and commits
// the stock, ledger and invoice together.
package invoice

import (
	"slices"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/stock"
)

// Status is the invoice lifecycle state. Only draft is produced here;
// payment workflows advance it elsewhere.
type Status string

const StatusDraft Status = "draft"

// Warning codes
const (
	WarningInsufficientStock = apperror.CodeInsufficientStock
	WarningUnresolvedItem    = apperror.CodeUnresolvedItem
	WarningGenericItem       = "GENERIC_ITEM"
)

// Warning is an advisory surfaced to the caller. Warnings never block a save.
type Warning struct {
	Code      string         `json:"code"`
	Line      int            `json:"line"`
	ItemType  stock.ItemType `json:"itemType"`
	ItemID    string         `json:"itemId,omitempty"`
	ItemName  string         `json:"itemName"`
	Required  int64          `json:"required"`
	Available int64          `json:"available"`
}

// Invoice is the persisted invoice document.
type Invoice struct {
	ID                   id.ID       `json:"id"`
	Number               string      `json:"number"`
	TicketID             string      `json:"ticketId"`
	TechnicianID         string      `json:"technicianId"`
	TeamID               string      `json:"teamId"`
	Status               Status      `json:"status"`
	Items                []LineItem  `json:"items"`
	TotalAmount          types.Money `json:"totalAmount"`
	PurchasePrice        types.Money `json:"purchasePrice"`
	NeedsStockAssignment bool        `json:"needsStockAssignment"`
	Warnings             []Warning   `json:"warnings,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
}

// Clone returns a deep copy of the invoice.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	if inv.Items != nil {
		c.Items = make([]LineItem, len(inv.Items))
		for k, line := range inv.Items {
			c.Items[k] = line.Clone()
		}
	}
	c.Warnings = slices.Clone(inv.Warnings)
	return &c
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	TechnicianID string
	TicketID     string
	Limit        int
	Offset       int
}

// Comment is the audit note appended to the originating ticket.
type Comment struct {
	Author string
	Text   string
	At     time.Time
}
