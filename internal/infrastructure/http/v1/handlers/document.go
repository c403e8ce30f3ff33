package handlers

import (
	"github.com/gin-gonic/gin"

	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/documents/payment"
	"medcore/internal/infrastructure/http/v1/dto"
)

// DocumentHandler serves invoices, purchase receipts and returns.
type DocumentHandler struct {
	*BaseHandler
	documents *invoice.Service
	payments  *payment.Service
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, documents *invoice.Service, payments *payment.Service) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, documents: documents, payments: payments}
}

// RegisterRoutes mounts the document routes on rg.
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/lines", h.AddLine)
	rg.PUT("/:id/lines/:lineId", h.UpdateLine)
	rg.DELETE("/:id/lines/:lineId", h.RemoveLine)
	rg.POST("/:id/post", h.Post)
	rg.POST("/:id/void", h.Void)
	rg.GET("/:id/returnable", h.Returnable)
	rg.POST("/:id/returns", h.CreateReturn)
	rg.GET("/:id/payments", h.Payments)
}

// Create creates a draft document.
// POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), tc, req.ToInput(h.Now()))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}

// Get returns a document with its lines.
// GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// List returns a page of documents.
// GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var q dto.DocumentListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.documents.List(c.Request.Context(), tc, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result, func(d *invoice.Invoice) *invoice.Invoice { return d }))
}

// AddLine appends a line to a draft.
// POST /documents/:id/lines
func (h *DocumentHandler) AddLine(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.LineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documents.AddLine(c.Request.Context(), tc, docID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// UpdateLine replaces a line of a draft.
// PUT /documents/:id/lines/:lineId
func (h *DocumentHandler) UpdateLine(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParseID(c, "lineId")
	if !ok {
		return
	}
	var req dto.LineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documents.UpdateLine(c.Request.Context(), tc, docID, lineID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// RemoveLine deletes a line from a draft.
// DELETE /documents/:id/lines/:lineId
func (h *DocumentHandler) RemoveLine(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParseID(c, "lineId")
	if !ok {
		return
	}

	doc, err := h.documents.RemoveLine(c.Request.Context(), tc, docID, lineID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Post posts a draft: stock moves, the ledger records it and the document freezes.
// POST /documents/:id/post
func (h *DocumentHandler) Post(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.documents.Post(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.PostResponse{Document: result.Invoice, Warnings: result.Warnings})
}

// Void cancels a draft.
// POST /documents/:id/void
func (h *DocumentHandler) Void(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.VoidRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Void(c.Request.Context(), tc, docID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Returnable lists per-line quantities still open for return.
// GET /documents/:id/returnable
func (h *DocumentHandler) Returnable(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	lines, err := h.documents.Returnable(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if lines == nil {
		lines = []invoice.ReturnableLine{}
	}
	h.OK(c, lines)
}

// CreateReturn drafts a sales return against a posted invoice.
// POST /documents/:id/returns
func (h *DocumentHandler) CreateReturn(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ret, err := h.documents.CreateReturn(c.Request.Context(), tc, docID, req.ToInput(h.Now()))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ret)
}

// Payments lists the payment applications against a document.
// GET /documents/:id/payments
func (h *DocumentHandler) Payments(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	apps, err := h.payments.ForDocument(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if apps == nil {
		apps = []payment.Application{}
	}
	h.OK(c, apps)
}
