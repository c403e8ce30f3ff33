package dto

import (
	"github.com/shopspring/decimal"

	"medcore/internal/core/id"
	"medcore/internal/core/types"
	"medcore/internal/domain/pricing"
)

// UnitPricingRequest derives per-unit prices from a pack.
// Either Factor is given, or ProductID with PackUnit so the factor is
// resolved from the product's conversions.
type UnitPricingRequest struct {
	PackCost      decimal.Decimal     `json:"packCost"`
	PackSalePrice decimal.Decimal     `json:"packSalePrice"`
	MRP           decimal.NullDecimal `json:"mrp"`
	Factor        decimal.NullDecimal `json:"factor"`
	ProductID     *id.ID              `json:"productId"`
	PackUnit      string              `json:"packUnit"`
}

// UnitPricingResponse is the unit derivation plus the configured rule outcome.
type UnitPricingResponse struct {
	pricing.UnitPrice
	Factor     types.Factor        `json:"factor"`
	Violations []pricing.Violation `json:"violations,omitempty"`
}
