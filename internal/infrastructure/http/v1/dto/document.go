package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"medcore/internal/core/id"
	"medcore/internal/domain/documents/invoice"
)

// --- Request DTOs ---

// CreateDocumentRequest creates a draft document.
type CreateDocumentRequest struct {
	Kind     invoice.Kind  `json:"kind" binding:"required,oneof=sales_invoice purchase_receipt"`
	PartyRef string        `json:"partyRef" binding:"max=128"`
	Currency string        `json:"currency" binding:"omitempty,len=3"`
	Date     *time.Time    `json:"date"`
	Comment  string        `json:"comment" binding:"max=1024"`
	Lines    []LineRequest `json:"lines" binding:"dive"`
}

// ToInput converts the request to a service input.
func (r CreateDocumentRequest) ToInput(now time.Time) invoice.CreateInput {
	date := now
	if r.Date != nil {
		date = *r.Date
	}
	lines := make([]invoice.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = l.ToInput()
	}
	return invoice.CreateInput{
		Kind:     r.Kind,
		PartyRef: r.PartyRef,
		Currency: r.Currency,
		Date:     date,
		Comment:  r.Comment,
		Lines:    lines,
	}
}

// LineRequest is one document line. Batch fields apply to purchase receipts.
type LineRequest struct {
	ProductID   *id.ID              `json:"productId"`
	Description string              `json:"description" binding:"max=512"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Unit        string              `json:"unit" binding:"max=32"`
	UnitPrice   decimal.Decimal     `json:"unitPrice"`
	Discount    decimal.Decimal     `json:"discount"`
	Tax         decimal.Decimal     `json:"tax"`
	BatchNumber string              `json:"batchNumber" binding:"max=64"`
	ExpiryDate  *time.Time          `json:"expiryDate"`
	SalePrice   decimal.NullDecimal `json:"salePrice"`
	MRP         decimal.NullDecimal `json:"mrp"`
}

// ToInput converts the request to a line input.
func (r LineRequest) ToInput() invoice.LineInput {
	return invoice.LineInput{
		ProductID:   r.ProductID,
		Description: r.Description,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		UnitPrice:   r.UnitPrice,
		Discount:    r.Discount,
		Tax:         r.Tax,
		BatchNumber: r.BatchNumber,
		ExpiryDate:  r.ExpiryDate,
		SalePrice:   r.SalePrice,
		MRP:         r.MRP,
	}
}

// VoidRequest voids a draft.
type VoidRequest struct {
	Reason string `json:"reason" binding:"max=512"`
}

// ReturnRequest creates a draft return against a posted sales invoice.
type ReturnRequest struct {
	Reason string              `json:"reason" binding:"required,max=512"`
	Date   *time.Time          `json:"date"`
	Lines  []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReturnLineRequest names an original line and the quantity going back.
type ReturnLineRequest struct {
	OriginalLineID id.ID           `json:"originalLineId" binding:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
}

// ToInput converts the request to a service input.
func (r ReturnRequest) ToInput(now time.Time) invoice.ReturnInput {
	date := now
	if r.Date != nil {
		date = *r.Date
	}
	lines := make([]invoice.ReturnLineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = invoice.ReturnLineInput{OriginalLineID: l.OriginalLineID, Quantity: l.Quantity}
	}
	return invoice.ReturnInput{Reason: r.Reason, Date: date, Lines: lines}
}

// DocumentListQuery adds document filters to ListQuery.
type DocumentListQuery struct {
	ListQuery
	Kind     string `form:"kind" binding:"omitempty,oneof=sales_invoice purchase_receipt sales_return"`
	PartyRef string `form:"partyRef"`
}

// ToFilter converts query parameters to a document filter.
func (q DocumentListQuery) ToFilter() invoice.ListFilter {
	return invoice.ListFilter{
		ListFilter: q.ListQuery.ToFilter(),
		Kind:       invoice.Kind(q.Kind),
		PartyRef:   q.PartyRef,
	}
}

// --- Response DTOs ---

// PostResponse carries the posted document and soft pricing warnings.
type PostResponse struct {
	Document *invoice.Invoice `json:"document"`
	Warnings []string         `json:"warnings,omitempty"`
}
