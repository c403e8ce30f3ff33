package dto

import (
	"github.com/shopspring/decimal"

	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
)

// --- Products ---

// CreateProductRequest registers a product.
type CreateProductRequest struct {
	SKU         string          `json:"sku" binding:"required,max=64"`
	Name        string          `json:"name" binding:"required,max=255"`
	BaseUnit    string          `json:"baseUnit" binding:"required,max=32"`
	DefaultCost decimal.Decimal `json:"defaultCost"`
	ListPrice   decimal.Decimal `json:"listPrice"`
	Service     bool            `json:"service"`
}

// ToInput converts the request to a service input.
func (r CreateProductRequest) ToInput() product.CreateInput {
	return product.CreateInput{
		SKU:         r.SKU,
		Name:        r.Name,
		BaseUnit:    r.BaseUnit,
		DefaultCost: r.DefaultCost,
		ListPrice:   r.ListPrice,
		Service:     r.Service,
	}
}

// --- Unit conversions ---

// DeclareConversionRequest declares "1 FromUnit = Factor ToUnit".
type DeclareConversionRequest struct {
	FromUnit string          `json:"fromUnit" binding:"required,max=32"`
	ToUnit   string          `json:"toUnit" binding:"required,max=32"`
	Factor   decimal.Decimal `json:"factor"`
}

// ConvertRequest converts a quantity between two units of one product.
type ConvertRequest struct {
	FromUnit string          `json:"fromUnit" binding:"required"`
	ToUnit   string          `json:"toUnit" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ConvertResponse carries the converted quantity and the factor applied.
type ConvertResponse struct {
	FromUnit string         `json:"fromUnit"`
	ToUnit   string         `json:"toUnit"`
	Quantity types.Quantity `json:"quantity"`
	Result   types.Quantity `json:"result"`
	Factor   types.Factor   `json:"factor"`
}
