package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"medcore/internal/core/id"
	"medcore/internal/core/types"
	"medcore/internal/domain/registers/batch"
)

// RestockRequest receives stock into a batch outside of a document.
type RestockRequest struct {
	ProductID   id.ID               `json:"productId" binding:"required"`
	BatchNumber string              `json:"batchNumber" binding:"required,max=64"`
	Quantity    decimal.Decimal     `json:"quantity"`
	UnitCost    decimal.Decimal     `json:"unitCost"`
	SalePrice   decimal.Decimal     `json:"salePrice"`
	MRP         decimal.NullDecimal `json:"mrp"`
	ExpiryDate  *time.Time          `json:"expiryDate"`
}

// ToInput converts the request to a service input.
func (r RestockRequest) ToInput() batch.RestockInput {
	return batch.RestockInput{
		ProductID:   r.ProductID,
		BatchNumber: r.BatchNumber,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		SalePrice:   r.SalePrice,
		MRP:         r.MRP,
		ExpiryDate:  r.ExpiryDate,
	}
}

// AllocatePreviewRequest asks which batches would serve a quantity.
type AllocatePreviewRequest struct {
	ProductID id.ID           `json:"productId" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	BatchID   *id.ID          `json:"batchId"`
	AsOf      *time.Time      `json:"asOf"`
}

// ToRequest converts the preview request to an allocation request.
// A missing AsOf means "now" on the service clock.
func (r AllocatePreviewRequest) ToRequest() batch.AllocateRequest {
	req := batch.AllocateRequest{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		BatchID:   r.BatchID,
	}
	if r.AsOf != nil {
		req.AsOf = *r.AsOf
	}
	return req
}

// ReverseRequest returns quantity to a batch. Reference makes the call idempotent.
type ReverseRequest struct {
	Quantity  decimal.Decimal `json:"quantity"`
	Reference string          `json:"reference" binding:"required,max=128"`
}

// AvailableResponse reports sellable stock of a product in base units.
type AvailableResponse struct {
	ProductID id.ID          `json:"productId"`
	Available types.Quantity `json:"available"`
}
