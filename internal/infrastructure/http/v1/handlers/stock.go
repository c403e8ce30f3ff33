package handlers

import (
	"github.com/gin-gonic/gin"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/infrastructure/http/v1/dto"
)

// StockHandler serves the batch ledger.
type StockHandler struct {
	*BaseHandler
	stock *batch.Service
}

// NewStockHandler creates a stock handler.
func NewStockHandler(base *BaseHandler, stock *batch.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, stock: stock}
}

// RegisterRoutes mounts the stock routes on rg.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/restock", h.Restock)
	rg.POST("/allocations/preview", h.PreviewAllocation)
	rg.POST("/batches/:id/reverse", h.Reverse)
	rg.GET("/products/:id/available", h.Available)
	rg.GET("/products/:id/batches", h.ListBatches)
	rg.GET("/products/:id/movements", h.Movements)
}

// Restock receives quantity into a batch.
// POST /stock/restock
func (h *StockHandler) Restock(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var req dto.RestockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.stock.Restock(c.Request.Context(), tc, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// PreviewAllocation returns the FEFO plan for a quantity without consuming stock.
// POST /stock/allocations/preview
func (h *StockHandler) PreviewAllocation(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var req dto.AllocatePreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !req.Quantity.IsPositive() {
		h.Error(c, apperror.NewValidation("quantity must be positive").WithDetail("quantity", req.Quantity.String()))
		return
	}

	result, err := h.stock.Preview(c.Request.Context(), tc, req.ToRequest())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Reverse credits a batch once per reference.
// POST /stock/batches/:id/reverse
func (h *StockHandler) Reverse(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ReverseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.stock.Reverse(c.Request.Context(), tc, batch.ReverseInput{
		BatchID:   batchID,
		Quantity:  req.Quantity,
		Reference: req.Reference,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// Available returns the sellable quantity of a product.
// GET /stock/products/:id/available
func (h *StockHandler) Available(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	qty, err := h.stock.Available(c.Request.Context(), tc, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AvailableResponse{ProductID: productID, Available: qty})
}

// ListBatches returns a product's batches in FEFO order.
// GET /stock/products/:id/batches
func (h *StockHandler) ListBatches(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	batches, err := h.stock.ListBatches(c.Request.Context(), tc, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if batches == nil {
		batches = []*batch.Batch{}
	}
	h.OK(c, batches)
}

// Movements returns a product's stock movement history.
// GET /stock/products/:id/movements
func (h *StockHandler) Movements(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	movements, err := h.stock.Movements(c.Request.Context(), tc, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if movements == nil {
		movements = []entity.StockMovement{}
	}
	h.OK(c, movements)
}
