// Package batch is the stock batch ledger: quantity-on-hand per product per
// batch, FEFO allocation, restock and idempotent reversal.
//
// Quantities here are always in the product base unit.
package batch

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

// Batch is one physical lot of a product.
type Batch struct {
	entity.BaseEntity

	ProductID      id.ID               `db:"product_id" json:"productId"`
	BatchNumber    string              `db:"batch_number" json:"batchNumber"`
	QuantityOnHand types.Quantity      `db:"quantity_on_hand" json:"quantityOnHand"`
	UnitCost       types.Money         `db:"unit_cost" json:"unitCost"`
	SalePrice      types.Money         `db:"sale_price" json:"salePrice"`
	MRP            decimal.NullDecimal `db:"mrp" json:"mrp"`
	ExpiryDate     *time.Time          `db:"expiry_date" json:"expiryDate,omitempty"`
	ReceivedAt     time.Time           `db:"received_at" json:"receivedAt"`
}

// NewBatch creates an empty batch; quantity arrives through Receive.
func NewBatch(tc tenant.Context, productID id.ID, number string) *Batch {
	b := &Batch{
		BaseEntity:     entity.NewBaseEntity(tc),
		ProductID:      productID,
		BatchNumber:    strings.TrimSpace(number),
		QuantityOnHand: types.Zero(),
	}
	b.ReceivedAt = b.CreatedAt
	return b
}

// Validate implements entity.Validatable.
func (b *Batch) Validate(ctx context.Context) error {
	var reasons []string
	if id.IsNil(b.ProductID) {
		reasons = append(reasons, "product is required")
	}
	if b.BatchNumber == "" {
		reasons = append(reasons, "batch number is required")
	}
	if b.QuantityOnHand.IsNegative() {
		reasons = append(reasons, "quantity on hand cannot be negative")
	}
	if b.UnitCost.IsNegative() || b.SalePrice.IsNegative() {
		reasons = append(reasons, "prices cannot be negative")
	}
	if len(reasons) > 0 {
		return apperror.NewValidationFailed("invalid batch", reasons)
	}
	return nil
}

// ExpiredAt reports whether the batch expired before the day of t.
func (b *Batch) ExpiredAt(t time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(truncateDay(t))
}

// Take removes qty from the batch. It never drives quantity below zero.
func (b *Batch) Take(qty types.Quantity) error {
	if qty.GreaterThan(b.QuantityOnHand) {
		return apperror.NewInsufficientStock(b.ProductID.String(), qty.String(), b.QuantityOnHand.String(),
			qty.Sub(b.QuantityOnHand).String())
	}
	b.QuantityOnHand = b.QuantityOnHand.Sub(qty)
	return nil
}

// Put adds qty back to the batch.
func (b *Batch) Put(qty types.Quantity) {
	b.QuantityOnHand = b.QuantityOnHand.Add(qty)
}

// Allocation is the slice of one batch consumed by an allocation.
type Allocation struct {
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	Quantity    types.Quantity `json:"quantity"`
	UnitCost    types.Money    `json:"unitCost"`
}

// Cost is Quantity*UnitCost rounded to money places.
func (a Allocation) Cost() types.Money {
	return types.RoundMoney(a.Quantity.Mul(a.UnitCost))
}

// AllocationResult lists the batches consumed by one request.
type AllocationResult struct {
	ProductID   id.ID          `json:"productId"`
	Requested   types.Quantity `json:"requested"`
	Allocations []Allocation   `json:"allocations"`
	TotalCost   types.Money    `json:"totalCost"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
