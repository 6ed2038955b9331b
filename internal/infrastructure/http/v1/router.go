// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldledger/internal/core/idempotency"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
	"fieldledger/internal/infrastructure/http/v1/handlers"
	"fieldledger/internal/infrastructure/http/v1/middleware"
	"fieldledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator

	Invoices *invoice.Service
	Stock    *stock.Service
	Catalogs *catalog.Service

	// Idempotency is optional; without it Idempotency-Key is ignored.
	Idempotency idempotency.Store

	// Metrics is optional. MetricsHandler is served on /metrics.
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler

	// ReadyChecks are run by /ready.
	ReadyChecks map[string]handlers.Checker
	Version     string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.ReadyChecks)
	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	handlers.NewInvoiceHandler(base, cfg.Invoices).RegisterRoutes(v1.Group("/invoices"))
	handlers.NewStockHandler(base, cfg.Stock).RegisterRoutes(v1.Group("/stock"))
	v1.GET("/catalog", handlers.NewCatalogHandler(base, cfg.Catalogs).Get)

	return router
}
