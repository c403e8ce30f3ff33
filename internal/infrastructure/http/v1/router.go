// Package v1 provides HTTP API version 1.
package v1

import (
	"context"

	"github.com/gin-gonic/gin"

	"medcore/internal/app"
	"medcore/internal/core/tenant"
	"medcore/internal/infrastructure/http/v1/handlers"
	"medcore/internal/infrastructure/http/v1/middleware"
	"medcore/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// AppName and Store are reported by /health/info
	AppName string
	Store   string

	// Logger for request logging
	Logger *logger.Logger

	// Services are the domain services the handlers call
	Services *app.Services

	// Checks are run by /health/ready; empty for the in-memory store
	Checks map[string]func(ctx context.Context) error

	// Tokens makes bearer tokens mandatory when set
	Tokens middleware.TokenValidator

	// Registry rejects unknown or suspended tenants when set
	Registry tenant.Registry

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	// Debug switches gin to debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.AppName, cfg.Store, cfg.Checks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.TenantContext(middleware.TenantOptions{
		Tokens:   cfg.Tokens,
		Registry: cfg.Registry,
	}))
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	svc := cfg.Services
	base := handlers.NewBaseHandler()
	MountAll(api,
		Mount{"/products", handlers.NewProductHandler(base, svc.Products, svc.Units)},
		Mount{"/stock", handlers.NewStockHandler(base, svc.Stock)},
		Mount{"/pricing", handlers.NewPricingHandler(base, svc.Products, svc.Units, svc.Policy)},
		Mount{"/documents", handlers.NewDocumentHandler(base, svc.Documents, svc.Payments)},
		Mount{"/payments", handlers.NewPaymentHandler(base, svc.Payments)},
		Mount{"/ledger", handlers.NewLedgerHandler(base, svc.Poster, svc.Documents)},
		Mount{"/reports", handlers.NewReportsHandler(base, svc.Reports)},
	)

	return router
}
