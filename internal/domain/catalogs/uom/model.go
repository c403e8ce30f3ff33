// Package uom is the unit-of-measure conversion engine.
//
// A Conversion declares quantity_in_to = quantity_in_from * factor for one
// product and one direction. The inverse is a separate record; the engine
// never derives it.
package uom

import (
	"context"
	"strings"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

// Conversion is a single declared (product, from, to, factor) record.
type Conversion struct {
	entity.BaseEntity

	ProductID id.ID        `db:"product_id" json:"productId"`
	FromUnit  string       `db:"from_unit" json:"fromUnit"`
	ToUnit    string       `db:"to_unit" json:"toUnit"`
	Factor    types.Factor `db:"factor" json:"factor"`
}

// NewConversion creates a conversion owned by tc.
func NewConversion(tc tenant.Context, productID id.ID, from, to string, factor types.Factor) *Conversion {
	return &Conversion{
		BaseEntity: entity.NewBaseEntity(tc),
		ProductID:  productID,
		FromUnit:   NormalizeUnit(from),
		ToUnit:     NormalizeUnit(to),
		Factor:     factor,
	}
}

// Validate implements entity.Validatable.
func (c *Conversion) Validate(ctx context.Context) error {
	var reasons []string
	if id.IsNil(c.ProductID) {
		reasons = append(reasons, "product is required")
	}
	if c.FromUnit == "" || c.ToUnit == "" {
		reasons = append(reasons, "both units are required")
	}
	if c.FromUnit != "" && c.FromUnit == c.ToUnit {
		reasons = append(reasons, "from and to units must differ")
	}
	if !c.Factor.IsPositive() {
		reasons = append(reasons, "factor must be positive")
	}
	if len(reasons) > 0 {
		return apperror.NewValidationFailed("invalid conversion", reasons)
	}
	return nil
}

// Apply converts qty expressed in FromUnit into ToUnit.
func (c *Conversion) Apply(qty types.Quantity) types.Quantity {
	return qty.Mul(c.Factor)
}

// NormalizeUnit canonicalizes a unit code ("Strip " -> "strip").
func NormalizeUnit(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
