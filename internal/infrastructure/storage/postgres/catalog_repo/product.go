// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/infrastructure/storage/postgres"
)

const (
	productTable     = "products"
	productSKUUnique = "uq_products_tenant_sku"
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	t *postgres.Table[product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(tm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{t: postgres.NewTable[product.Product](tm, productTable, "product", "name ASC")}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	err := r.t.Insert(ctx, p)
	if postgres.IsUniqueViolation(err, productSKUUnique) {
		return apperror.NewConflict("product sku already exists").WithDetail("sku", p.SKU)
	}
	return err
}

func (r *ProductRepo) GetByID(ctx context.Context, tc tenant.Context, productID id.ID) (*product.Product, error) {
	p, err := r.t.Get(ctx, r.t.ByID(tc, productID), productID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Check(ctx, tc, p.Scope, "product", productID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepo) GetBySKU(ctx context.Context, tc tenant.Context, sku string) (*product.Product, error) {
	q := r.t.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where("lower(sku) = lower(?)", strings.TrimSpace(sku))
	return r.t.Get(ctx, q, sku)
}

func (r *ProductRepo) List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	q := r.t.Select().Where(postgres.ScopeFilter(tc, ""))
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"sku": pattern},
		})
	}
	return r.t.Page(ctx, q, filter)
}
