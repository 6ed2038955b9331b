package handlers

import (
	"github.com/gin-gonic/gin"

	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves the team catalog as the pricer sees it.
type CatalogHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, service: service}
}

// Get handles GET /catalog
func (h *CatalogHandler) Get(c *gin.Context) {
	tech := h.Technician(c)
	if tech == nil {
		return
	}

	cat, err := h.service.Get(c.Request.Context(), tech.TeamID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCatalog(cat))
}
