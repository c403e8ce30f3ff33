package uom_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (context.Context, tenant.Context, *uom.Engine, *product.Product) {
	t.Helper()
	ctx := context.Background()
	repos := memory.New().Repositories()
	products := product.NewService(repos.Products)
	tc := tenant.New(id.New(), "pharmacist")

	p, err := products.Create(ctx, tc, product.CreateInput{SKU: "PCM-500", Name: "Paracetamol 500mg", BaseUnit: "tablet"})
	require.NoError(t, err)
	return ctx, tc, uom.NewEngine(repos.Conversions, products), p
}

func TestEngine_Convert(t *testing.T) {
	ctx, tc, engine, p := setup(t)

	_, err := engine.Declare(ctx, tc, p.ID, "Strip", "tablet", types.MustQuantity("10"))
	require.NoError(t, err)

	got, err := engine.Convert(ctx, tc, p.ID, "strip", "tablet", types.MustQuantity("3"))
	require.NoError(t, err)
	assert.True(t, got.Equal(types.MustQuantity("30")), "got %s", got)

	base, err := engine.ToBase(ctx, tc, p, "STRIP", types.MustQuantity("1.5"))
	require.NoError(t, err)
	assert.True(t, base.Equal(types.MustQuantity("15")), "got %s", base)
}

func TestEngine_IdentityNeedsNoDeclaration(t *testing.T) {
	ctx, tc, engine, p := setup(t)

	f, err := engine.Factor(ctx, tc, p.ID, "tablet", "Tablet")
	require.NoError(t, err)
	assert.True(t, f.Equal(types.NewQuantity(1)))
}

func TestEngine_InverseIsNotInferred(t *testing.T) {
	ctx, tc, engine, p := setup(t)

	_, err := engine.Declare(ctx, tc, p.ID, "strip", "tablet", types.MustQuantity("10"))
	require.NoError(t, err)

	_, err = engine.Convert(ctx, tc, p.ID, "tablet", "strip", types.MustQuantity("10"))
	assert.True(t, apperror.Is(err, apperror.CodeConversionNotFound))
}

func TestEngine_DeclareRejectsDuplicatesAndBadFactors(t *testing.T) {
	ctx, tc, engine, p := setup(t)

	_, err := engine.Declare(ctx, tc, p.ID, "box", "strip", types.MustQuantity("10"))
	require.NoError(t, err)

	_, err = engine.Declare(ctx, tc, p.ID, "box", "strip", types.MustQuantity("12"))
	assert.True(t, apperror.Is(err, apperror.CodeConflict))

	_, err = engine.Declare(ctx, tc, p.ID, "box", "tablet", types.Zero())
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = engine.Declare(ctx, tc, p.ID, "box", "box", types.MustQuantity("1"))
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestEngine_ConversionsAreTenantScoped(t *testing.T) {
	ctx, tc, engine, p := setup(t)

	_, err := engine.Declare(ctx, tc, p.ID, "strip", "tablet", types.MustQuantity("10"))
	require.NoError(t, err)

	other := tenant.New(id.New(), "intruder")
	_, err = engine.Factor(ctx, other, p.ID, "strip", "tablet")
	assert.True(t, apperror.Is(err, apperror.CodeConversionNotFound))

	_, err = engine.Declare(ctx, other, p.ID, "box", "strip", types.MustQuantity("10"))
	assert.True(t, apperror.IsNotFound(err))
}
