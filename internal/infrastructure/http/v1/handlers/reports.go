package handlers

import (
	"github.com/gin-gonic/gin"

	"medcore/internal/domain/reports"
	"medcore/internal/infrastructure/http/v1/dto"
)

// ReportsHandler serves read-only stock and billing reports.
type ReportsHandler struct {
	*BaseHandler
	reports *reports.Service
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(base *BaseHandler, reports *reports.Service) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, reports: reports}
}

// RegisterRoutes mounts the report routes on rg.
func (h *ReportsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stock-valuation", h.StockValuation)
	rg.GET("/receivables", h.Receivables)
}

// StockValuation values available stock and flags expiring batches.
// GET /reports/stock-valuation
func (h *ReportsHandler) StockValuation(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var q dto.StockValuationQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.reports.GetStockValuation(c.Request.Context(), tc, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Receivables ages unpaid sales invoices by party.
// GET /reports/receivables
func (h *ReportsHandler) Receivables(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var q dto.ReceivablesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	report, err := h.reports.GetReceivables(c.Request.Context(), tc, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}
