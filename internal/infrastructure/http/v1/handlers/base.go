package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldledger/internal/core/apperror"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/core/idempotency"
)

// Gin context keys shared with the idempotency and error middleware.
const (
	KeyIdempotencyKey   = "idempotency_key"
	KeyIdempotencyStore = "idempotency_store"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON body is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Technician returns the authenticated technician. It writes a 401 and
// returns nil when the request carries none.
func (h *BaseHandler) Technician(c *gin.Context) *appctx.Technician {
	t := appctx.GetTechnician(c.Request.Context())
	if t == nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return nil
	}
	return t
}

// CompleteIdempotency stores the response under the request's idempotency
// key so a retry replays the same status, content type and body.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	key := c.GetString(KeyIdempotencyKey)
	if key == "" {
		return
	}
	v, _ := c.Get(KeyIdempotencyStore)
	if store, ok := v.(idempotency.Store); ok && store != nil {
		_ = store.CompleteKey(c.Request.Context(), key, statusCode, contentType, response)
	}
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", data)
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusOK, "application/json", data)
	c.JSON(http.StatusOK, data)
}
