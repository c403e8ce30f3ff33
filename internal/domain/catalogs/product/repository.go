package product

import (
	"context"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
)

// Repository persists products. Every method is tenant scoped.
type Repository interface {
	// Create inserts a product; a duplicate SKU within the tenant is a CONFLICT.
	Create(ctx context.Context, p *Product) error

	GetByID(ctx context.Context, tc tenant.Context, productID id.ID) (*Product, error)

	GetBySKU(ctx context.Context, tc tenant.Context, sku string) (*Product, error)

	List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*Product], error)
}
