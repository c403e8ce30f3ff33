package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/infrastructure/storage/postgres"
)

const (
	conversionTable  = "uom_conversions"
	conversionUnique = "uq_uom_conversions_direction"
)

// ConversionRepo implements uom.Repository.
type ConversionRepo struct {
	t *postgres.Table[uom.Conversion]
}

var _ uom.Repository = (*ConversionRepo)(nil)

// NewConversionRepo creates a new conversion repository.
func NewConversionRepo(tm *postgres.TxManager) *ConversionRepo {
	return &ConversionRepo{t: postgres.NewTable[uom.Conversion](tm, conversionTable, "conversion", "from_unit ASC")}
}

func (r *ConversionRepo) Create(ctx context.Context, c *uom.Conversion) error {
	err := r.t.Insert(ctx, c)
	if postgres.IsUniqueViolation(err, conversionUnique) {
		return apperror.NewConflict("conversion already declared").
			WithDetail("from", c.FromUnit).
			WithDetail("to", c.ToUnit)
	}
	return err
}

func (r *ConversionRepo) Find(ctx context.Context, tc tenant.Context, productID id.ID, from, to string) (*uom.Conversion, error) {
	q := r.t.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"product_id": productID, "from_unit": from, "to_unit": to})
	return r.t.Get(ctx, q, from+"->"+to)
}

func (r *ConversionRepo) ListByProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*uom.Conversion, error) {
	q := r.t.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("from_unit", "to_unit")
	return r.t.All(ctx, q)
}
