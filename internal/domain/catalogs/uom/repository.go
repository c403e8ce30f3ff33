package uom

import (
	"context"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

// Repository persists conversions. A second record for the same
// (tenant, product, from, to) must be rejected with CONFLICT.
type Repository interface {
	Create(ctx context.Context, c *Conversion) error

	// Find returns the exact record or a NOT_FOUND AppError.
	Find(ctx context.Context, tc tenant.Context, productID id.ID, from, to string) (*Conversion, error)

	ListByProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*Conversion, error)
}
