package uom

import (
	"context"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/pkg/logger"
)

// ProductLookup is the slice of the product catalog the engine needs.
type ProductLookup interface {
	Get(ctx context.Context, tc tenant.Context, productID id.ID) (*product.Product, error)
}

// Engine resolves conversions between declared units of a product.
type Engine struct {
	repo     Repository
	products ProductLookup
}

// NewEngine creates a conversion engine.
func NewEngine(repo Repository, products ProductLookup) *Engine {
	return &Engine{repo: repo, products: products}
}

// Factor returns the declared factor for (product, from, to).
// Identical units resolve to 1 without a lookup.
func (e *Engine) Factor(ctx context.Context, tc tenant.Context, productID id.ID, from, to string) (types.Factor, error) {
	from, to = NormalizeUnit(from), NormalizeUnit(to)
	if from == to {
		return types.NewQuantity(1), nil
	}

	c, err := e.repo.Find(ctx, tc, productID, from, to)
	if err != nil {
		if apperror.IsNotFound(err) {
			return types.Zero(), apperror.NewConversionNotFound(productID.String(), from, to)
		}
		return types.Zero(), err
	}
	return c.Factor, nil
}

// Convert returns qty * factor(from → to).
func (e *Engine) Convert(ctx context.Context, tc tenant.Context, productID id.ID, from, to string, qty types.Quantity) (types.Quantity, error) {
	if NormalizeUnit(from) == NormalizeUnit(to) {
		return qty, nil
	}
	factor, err := e.Factor(ctx, tc, productID, from, to)
	if err != nil {
		return types.Zero(), err
	}
	return qty.Mul(factor), nil
}

// ToBase converts qty in unit into the product's base unit.
func (e *Engine) ToBase(ctx context.Context, tc tenant.Context, p *product.Product, unit string, qty types.Quantity) (types.Quantity, error) {
	return e.Convert(ctx, tc, p.ID, unit, p.BaseUnit, qty)
}

// Declare registers a conversion for a product visible to tc.
func (e *Engine) Declare(ctx context.Context, tc tenant.Context, productID id.ID, from, to string, factor types.Factor) (*Conversion, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.products.Get(ctx, tc, productID); err != nil {
		return nil, err
	}

	c := NewConversion(tc, productID, from, to, factor)
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	if err := e.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	logger.Info(ctx, "conversion declared",
		"product_id", productID,
		"from", c.FromUnit,
		"to", c.ToUnit,
		"factor", c.Factor.String(),
	)
	return c, nil
}

// ListForProduct returns every conversion declared for a product.
func (e *Engine) ListForProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*Conversion, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return e.repo.ListByProduct(ctx, tc, productID)
}
