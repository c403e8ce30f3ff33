package handlers

import (
	"github.com/gin-gonic/gin"

	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/ledger"
)

// LedgerHandler exposes the append-only change ledger.
type LedgerHandler struct {
	*BaseHandler
	poster    *ledger.Poster
	documents *invoice.Service
}

// NewLedgerHandler creates a ledger handler.
func NewLedgerHandler(base *BaseHandler, poster *ledger.Poster, documents *invoice.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, poster: poster, documents: documents}
}

// RegisterRoutes mounts the ledger routes on rg.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id", h.History)
	rg.GET("/documents/:id/reconcile", h.Reconcile)
}

// History returns a document's ledger records oldest first.
// GET /ledger/documents/:id
func (h *LedgerHandler) History(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	records, err := h.poster.History(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if records == nil {
		records = []*ledger.Record{}
	}
	h.OK(c, records)
}

// Reconcile compares the ledger sum with the document's effective total.
// GET /ledger/documents/:id/reconcile
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	doc, err := h.documents.Get(ctx, tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.poster.Reconcile(ctx, tc, docID, doc.EffectiveTotal())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
