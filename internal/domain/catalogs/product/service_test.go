package product_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/infrastructure/storage/memory"
)

func TestService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := product.NewService(memory.New().Repositories().Products)
	tc := tenant.New(id.New(), "admin")

	p, err := svc.Create(ctx, tc, product.CreateInput{
		SKU: "AMX-250", Name: "Amoxicillin 250mg", BaseUnit: "capsule",
		DefaultCost: types.MustMoney("1.20"), ListPrice: types.MustMoney("2.00"),
	})
	require.NoError(t, err)
	assert.True(t, p.Stocked)
	assert.Equal(t, tc.TenantID, p.TenantID)

	got, err := svc.GetBySKU(ctx, tc, " AMX-250 ")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	fee, err := svc.Create(ctx, tc, product.CreateInput{SKU: "REG", Name: "Registration fee", BaseUnit: "visit", Service: true})
	require.NoError(t, err)
	assert.False(t, fee.Stocked)

	list, err := svc.List(ctx, tc, domain.ListFilter{Search: "amox"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
}

func TestService_RejectsInvalidAndDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := product.NewService(memory.New().Repositories().Products)
	tc := tenant.New(id.New(), "admin")

	_, err := svc.Create(ctx, tc, product.CreateInput{SKU: "X"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = svc.Create(ctx, tc, product.CreateInput{SKU: "GAUZE", Name: "Gauze", BaseUnit: "roll"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, tc, product.CreateInput{SKU: "gauze", Name: "Gauze 2", BaseUnit: "roll"})
	assert.True(t, apperror.Is(err, apperror.CodeConflict))

	// Other tenants may reuse the SKU.
	_, err = svc.Create(ctx, tenant.New(id.New(), "admin"), product.CreateInput{SKU: "GAUZE", Name: "Gauze", BaseUnit: "roll"})
	assert.NoError(t, err)
}

func TestService_CrossTenantReadLooksLikeNotFound(t *testing.T) {
	ctx := context.Background()
	svc := product.NewService(memory.New().Repositories().Products)
	owner := tenant.New(id.New(), "admin")

	p, err := svc.Create(ctx, owner, product.CreateInput{SKU: "ORS", Name: "ORS sachet", BaseUnit: "sachet"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, tenant.New(id.New(), "intruder"), p.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.Get(ctx, tenant.Context{}, p.ID)
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))

	list, err := svc.List(ctx, tenant.New(id.New(), "intruder"), domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}
