package handlers

import (
	"github.com/gin-gonic/gin"

	"medcore/internal/domain/documents/payment"
	"medcore/internal/infrastructure/http/v1/dto"
)

// PaymentHandler serves payments.
type PaymentHandler struct {
	*BaseHandler
	payments *payment.Service
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(base *BaseHandler, payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, payments: payments}
}

// RegisterRoutes mounts the payment routes on rg.
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Record)
	rg.GET("/:id", h.Get)
}

// Record records a payment and applies it to the listed documents.
// POST /payments
func (h *PaymentHandler) Record(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var req dto.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.payments.Record(c.Request.Context(), tc, req.ToInput(h.Now()))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get returns one payment with its applications.
// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	paymentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.payments.Get(c.Request.Context(), tc, paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// List returns a page of payments.
// GET /payments
func (h *PaymentHandler) List(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.payments.List(c.Request.Context(), tc, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result, func(p *payment.Payment) *payment.Payment { return p }))
}
