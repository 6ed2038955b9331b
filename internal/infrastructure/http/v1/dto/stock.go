package dto

import (
	"time"

	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/stock"
)

// TransactionQuery holds the GET /stock/transactions filters.
type TransactionQuery struct {
	ItemID string     `form:"itemId"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int        `form:"limit" binding:"omitempty,min=1"`
	Offset int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter scopes the query to one technician.
func (q TransactionQuery) ToFilter(technicianID string) stock.TransactionFilter {
	return stock.TransactionFilter{
		TechnicianID: technicianID,
		ItemID:       q.ItemID,
		From:         q.From,
		To:           q.To,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
}

// StockResponse is the technician's stock document. Items are returned
// as stored, including any deficit lots.
type StockResponse struct {
	TechnicianID string       `json:"technicianId"`
	Items        []stock.Item `json:"items"`
	Version      int64        `json:"version"`
	UpdatedAt    *time.Time   `json:"updatedAt,omitempty"`
}

func FromStock(s *stock.TechnicianStock) StockResponse {
	// Zero time means the technician has never held stock.
	var updated *time.Time
	if !s.UpdatedAt.IsZero() {
		val := s.UpdatedAt
		updated = &val
	}
	items := s.Items
	if items == nil {
		items = []stock.Item{}
	}
	return StockResponse{
		TechnicianID: s.TechnicianID,
		Items:        items,
		Version:      s.Version,
		UpdatedAt:    updated,
	}
}

type CatalogResponse struct {
	TeamID    string          `json:"teamId"`
	Default   bool            `json:"default"`
	Entries   []catalog.Entry `json:"entries"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

func FromCatalog(c *catalog.Catalog) CatalogResponse {
	var updated *time.Time
	if !c.UpdatedAt.IsZero() {
		val := c.UpdatedAt
		updated = &val
	}
	entries := c.Entries
	if entries == nil {
		entries = []catalog.Entry{}
	}
	return CatalogResponse{TeamID: c.TeamID, Default: c.Default, Entries: entries, UpdatedAt: updated}
}
