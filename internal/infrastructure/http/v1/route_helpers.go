package v1

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar is implemented by handlers that mount their own routes.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Mount is one handler under a path prefix.
type Mount struct {
	Prefix  string
	Handler RouteRegistrar
}

// MountAll registers every handler under its prefix in rg.
//
// Usage:
//
//	MountAll(api,
//		Mount{"/products", handlers.NewProductHandler(base, svc.Products, svc.Units)},
//		Mount{"/payments", handlers.NewPaymentHandler(base, svc.Payments)},
//	)
func MountAll(rg *gin.RouterGroup, mounts ...Mount) {
	for _, m := range mounts {
		m.Handler.RegisterRoutes(rg.Group(m.Prefix))
	}
}
