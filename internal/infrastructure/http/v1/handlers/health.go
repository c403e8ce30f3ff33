package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

// HealthHandler serves the probes orchestration polls. It sits outside
// /api/v1, so no tenant is required.
type HealthHandler struct {
	name    string
	store   string
	started time.Time
	checks  map[string]func(ctx context.Context) error
}

// NewHealthHandler creates a health handler. checks is keyed by dependency
// name ("database", "redis"); the memory store has none. A check returns
// nil when the dependency is healthy.
func NewHealthHandler(name, store string, checks map[string]func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{name: name, store: store, started: time.Now(), checks: checks}
}

// Live reports that the process serves requests.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready runs every check with a short timeout. One failure answers 503.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			results[name] = "unhealthy: " + err.Error()
			status, code = "error", http.StatusServiceUnavailable
			continue
		}
		results[name] = "healthy"
	}

	c.JSON(code, gin.H{"status": status, "checks": results})
}

// Info reports the deployment: application name, store and uptime.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":    h.name,
		"store":  h.store,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
