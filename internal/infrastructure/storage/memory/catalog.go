package memory

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"strings"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
)

func compareID(a, b id.ID) int {
	return bytes.Compare(a[:], b[:])
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	s *Store
}

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.s.do(ctx, func(st *state) error {
		for _, other := range st.products {
			if other.TenantID == p.TenantID && strings.EqualFold(other.SKU, p.SKU) {
				return apperror.NewConflict("product sku already exists").WithDetail("sku", p.SKU)
			}
		}
		st.products[p.ID] = *p
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, tc tenant.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID)
		}
		if err := tenant.Check(ctx, tc, p.Scope, "product", productID); err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetBySKU(ctx context.Context, tc tenant.Context, sku string) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.products {
			if tc.Owns(p.Scope) && strings.EqualFold(p.SKU, sku) {
				out = &p
				return nil
			}
		}
		return apperror.NewNotFound("product", sku)
	})
	return out, err
}

func (r *ProductRepo) List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	var items []*product.Product
	_ = r.s.do(ctx, func(st *state) error {
		search := strings.ToLower(filter.Search)
		for _, p := range st.products {
			if !tc.Owns(p.Scope) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
				!strings.Contains(strings.ToLower(p.SKU), search) {
				continue
			}
			items = append(items, &p)
		}
		return nil
	})
	slices.SortFunc(items, func(a, b *product.Product) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), compareID(a.ID, b.ID))
	})
	return domain.Page(items, filter), nil
}

// ConversionRepo implements uom.Repository.
type ConversionRepo struct {
	s *Store
}

var _ uom.Repository = (*ConversionRepo)(nil)

func (r *ConversionRepo) Create(ctx context.Context, c *uom.Conversion) error {
	return r.s.do(ctx, func(st *state) error {
		for _, other := range st.conversions {
			if other.TenantID == c.TenantID && other.ProductID == c.ProductID &&
				other.FromUnit == c.FromUnit && other.ToUnit == c.ToUnit {
				return apperror.NewConflict("conversion already declared").
					WithDetail("from", c.FromUnit).
					WithDetail("to", c.ToUnit)
			}
		}
		st.conversions[c.ID] = *c
		return nil
	})
}

func (r *ConversionRepo) Find(ctx context.Context, tc tenant.Context, productID id.ID, from, to string) (*uom.Conversion, error) {
	var out *uom.Conversion
	err := r.s.do(ctx, func(st *state) error {
		for _, c := range st.conversions {
			if c.ProductID == productID && c.FromUnit == from && c.ToUnit == to && tc.Owns(c.Scope) {
				out = &c
				return nil
			}
		}
		return apperror.NewNotFound("conversion", from+"->"+to)
	})
	return out, err
}

func (r *ConversionRepo) ListByProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*uom.Conversion, error) {
	var out []*uom.Conversion
	_ = r.s.do(ctx, func(st *state) error {
		for _, c := range st.conversions {
			if c.ProductID == productID && tc.Owns(c.Scope) {
				out = append(out, &c)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *uom.Conversion) int {
		return cmp.Or(strings.Compare(a.FromUnit, b.FromUnit), strings.Compare(a.ToUnit, b.ToUnit))
	})
	return out, nil
}
