// Package product provides the product catalog: SKU, base unit, default cost and list price.
package product

import (
	"context"
	"strings"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

// Product is a billable item. Stocked products move batches when documents post;
// service products (consultation, registration fee) never do.
type Product struct {
	entity.BaseEntity

	SKU         string      `db:"sku" json:"sku"`
	Name        string      `db:"name" json:"name"`
	BaseUnit    string      `db:"base_unit" json:"baseUnit"`
	DefaultCost types.Money `db:"default_cost" json:"defaultCost"`
	ListPrice   types.Money `db:"list_price" json:"listPrice"`
	Stocked     bool        `db:"stocked" json:"stocked"`
}

// NewProduct creates a stocked product owned by tc.
func NewProduct(tc tenant.Context, sku, name, baseUnit string) *Product {
	return &Product{
		BaseEntity:  entity.NewBaseEntity(tc),
		SKU:         strings.TrimSpace(sku),
		Name:        strings.TrimSpace(name),
		BaseUnit:    strings.TrimSpace(baseUnit),
		DefaultCost: types.Zero(),
		ListPrice:   types.Zero(),
		Stocked:     true,
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	var reasons []string
	if p.SKU == "" {
		reasons = append(reasons, "sku is required")
	}
	if p.Name == "" {
		reasons = append(reasons, "name is required")
	}
	if p.BaseUnit == "" {
		reasons = append(reasons, "base unit is required")
	}
	if p.DefaultCost.IsNegative() {
		reasons = append(reasons, "default cost cannot be negative")
	}
	if p.ListPrice.IsNegative() {
		reasons = append(reasons, "list price cannot be negative")
	}
	if len(reasons) > 0 {
		return apperror.NewValidationFailed("invalid product", reasons)
	}
	return nil
}
