package handlers

import (
	"github.com/gin-gonic/gin"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler handles HTTP requests for invoices.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the invoice endpoints on rg.
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Save)
	rg.POST("/preview", h.Preview)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}

// Save handles POST /invoices
func (h *InvoiceHandler) Save(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}
	var req dto.SaveInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Save(c.Request.Context(), invoice.SaveCommand{
		TechnicianID:   tech.TechnicianID,
		TechnicianName: tech.Name,
		TeamID:         tech.TeamID,
		TicketID:       req.TicketID,
		Items:          dto.ToLineItems(req.Items),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromInvoice(result.Invoice))
}

// Preview handles POST /invoices/preview
func (h *InvoiceHandler) Preview(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}
	var req dto.PreviewInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), invoice.PreviewCommand{
		TechnicianID: tech.TechnicianID,
		TeamID:       tech.TeamID,
		Items:        dto.ToLineItems(req.Items),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPreview(preview))
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}
	invoiceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid invoice id").WithDetail("id", c.Param("id")))
		return
	}

	inv, err := h.service.Get(c.Request.Context(), tech.TechnicianID, invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	invoices, err := h.service.List(c.Request.Context(), invoice.ListFilter{
		TechnicianID: tech.TechnicianID,
		TicketID:     c.Query("ticketId"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.InvoiceResponse, len(invoices))
	for k := range invoices {
		items[k] = dto.FromInvoice(&invoices[k])
	}
	h.OK(c, dto.NewListResponse(items, page.Limit, page.Offset))
}
