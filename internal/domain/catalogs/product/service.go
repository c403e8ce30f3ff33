package product

import (
	"context"
	"strings"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain"
	"medcore/pkg/logger"
)

// CreateInput describes a new product.
type CreateInput struct {
	SKU         string
	Name        string
	BaseUnit    string
	DefaultCost types.Money
	ListPrice   types.Money
	Service     bool // true for non-stocked items
}

// Service provides product catalog operations.
type Service struct {
	repo Repository
}

// NewService creates a product service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a product under tc.
func (s *Service) Create(ctx context.Context, tc tenant.Context, in CreateInput) (*Product, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	p := NewProduct(tc, in.SKU, in.Name, in.BaseUnit)
	p.DefaultCost = in.DefaultCost
	p.ListPrice = in.ListPrice
	p.Stocked = !in.Service

	if err := p.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.Info(ctx, "product created", "product_id", p.ID, "sku", p.SKU)
	return p, nil
}

// Get returns a product visible to tc.
func (s *Service) Get(ctx context.Context, tc tenant.Context, productID id.ID) (*Product, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tc, productID)
}

// GetBySKU returns a product by its tenant-unique SKU.
func (s *Service) GetBySKU(ctx context.Context, tc tenant.Context, sku string) (*Product, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetBySKU(ctx, tc, strings.TrimSpace(sku))
}

// List returns products visible to tc.
func (s *Service) List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*Product], error) {
	if err := tc.Validate(); err != nil {
		return domain.ListResult[*Product]{}, err
	}
	return s.repo.List(ctx, tc, filter.Normalize())
}
