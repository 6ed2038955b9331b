package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldledger/internal/domain/stock"
	"fieldledger/internal/infrastructure/export"
	"fieldledger/internal/infrastructure/http/v1/dto"
)

const (
	defaultPageSize = 100
	// exportRowLimit caps the rows written to one workbook.
	exportRowLimit = 5000
)

// StockHandler handles HTTP requests for technician stock and the ledger.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the stock endpoints on rg.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.GET("/transactions", h.Transactions)
	rg.GET("/transactions/export", h.Export)
}

// Get handles GET /stock
func (h *StockHandler) Get(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}

	st, err := h.service.GetStock(c.Request.Context(), tech.TechnicianID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStock(st))
}

// Transactions handles GET /stock/transactions
func (h *StockHandler) Transactions(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}
	var q dto.TransactionQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	rows, err := h.service.ListTransactions(c.Request.Context(), q.ToFilter(tech.TechnicianID))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(rows, q.Limit, q.Offset))
}

// Export handles GET /stock/transactions/export
func (h *StockHandler) Export(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}
	var q dto.TransactionQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Limit = exportRowLimit
	q.Offset = 0

	rows, err := h.service.ListTransactions(c.Request.Context(), q.ToFilter(tech.TechnicianID))
	if err != nil {
		h.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteLedger(&buf, tech.TechnicianID, rows); err != nil {
		h.Error(c, fmt.Errorf("export ledger: %w", err))
		return
	}

	filename := fmt.Sprintf("ledger-%s-%s.xlsx", tech.TechnicianID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}
