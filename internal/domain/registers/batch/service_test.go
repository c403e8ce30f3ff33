package batch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/pricing"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/infrastructure/storage/memory"
)

type fixture struct {
	ctx     context.Context
	tc      tenant.Context
	svc     *batch.Service
	product *product.Product
}

func newFixture(t *testing.T, policy *pricing.Policy) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()
	products := product.NewService(repos.Products)
	tc := tenant.New(id.New(), "storekeeper")

	p, err := products.Create(ctx, tc, product.CreateInput{SKU: "CTZ-10", Name: "Cetirizine 10mg", BaseUnit: "tablet"})
	require.NoError(t, err)

	return &fixture{
		ctx:     ctx,
		tc:      tc,
		svc:     batch.NewService(repos.Batches, store, products, policy),
		product: p,
	}
}

func (f *fixture) restock(t *testing.T, number, qty string, expiry time.Time) *batch.Batch {
	t.Helper()
	res, err := f.svc.Restock(f.ctx, f.tc, batch.RestockInput{
		ProductID:   f.product.ID,
		BatchNumber: number,
		Quantity:    types.MustQuantity(qty),
		UnitCost:    types.MustMoney("2.00"),
		SalePrice:   types.MustMoney("3.00"),
		ExpiryDate:  &expiry,
	})
	require.NoError(t, err)
	return res.Batch
}

func (f *fixture) onHand(t *testing.T) map[string]string {
	t.Helper()
	batches, err := f.svc.ListBatches(f.ctx, f.tc, f.product.ID)
	require.NoError(t, err)
	out := make(map[string]string, len(batches))
	for _, b := range batches {
		out[b.BatchNumber] = b.QuantityOnHand.String()
	}
	return out
}

func TestService_AllocateFEFO(t *testing.T) {
	f := newFixture(t, nil)
	f.restock(t, "LATE", "100", time.Now().AddDate(2, 0, 0))
	soon := f.restock(t, "SOON", "50", time.Now().AddDate(0, 6, 0))

	res, err := f.svc.Allocate(f.ctx, f.tc, batch.AllocateRequest{ProductID: f.product.ID, Quantity: types.MustQuantity("20")})
	require.NoError(t, err)

	require.Len(t, res.Allocations, 1)
	assert.Equal(t, soon.ID, res.Allocations[0].BatchID)
	assert.True(t, res.TotalCost.Equal(types.MustMoney("40")))
	assert.Equal(t, map[string]string{"SOON": "30", "LATE": "100"}, f.onHand(t))

	moves, err := f.svc.Movements(f.ctx, f.tc, f.product.ID)
	require.NoError(t, err)
	last := moves[len(moves)-1]
	assert.Equal(t, entity.MovementAllocation, last.Kind)
	assert.True(t, last.Quantity.Equal(types.MustQuantity("-20")))
}

func TestService_AllocateIsAllOrNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.restock(t, "A", "10", time.Now().AddDate(1, 0, 0))
	f.restock(t, "B", "5", time.Now().AddDate(1, 1, 0))

	_, err := f.svc.Allocate(f.ctx, f.tc, batch.AllocateRequest{ProductID: f.product.ID, Quantity: types.MustQuantity("20")})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, map[string]string{"A": "10", "B": "5"}, f.onHand(t))

	available, err := f.svc.Available(f.ctx, f.tc, f.product.ID)
	require.NoError(t, err)
	assert.True(t, available.Equal(types.MustQuantity("15")))
}

func TestService_ConcurrentAllocationsNeverOversell(t *testing.T) {
	f := newFixture(t, nil)
	f.restock(t, "ONLY", "100", time.Now().AddDate(1, 0, 0))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Allocate(f.ctx, f.tc, batch.AllocateRequest{ProductID: f.product.ID, Quantity: types.MustQuantity("60")})
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, map[string]string{"ONLY": "40"}, f.onHand(t))
}

func TestService_RestockMergesByBatchNumber(t *testing.T) {
	f := newFixture(t, nil)
	expiry := time.Now().AddDate(1, 0, 0)

	first := f.restock(t, "LOT-7", "10", expiry)
	second := f.restock(t, "LOT-7", "5", expiry)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.QuantityOnHand.Equal(types.MustQuantity("15")))
	assert.Equal(t, 2, second.Version)
}

func TestService_RestockNeverRevaluesStockOnHand(t *testing.T) {
	f := newFixture(t, nil)
	expiry := time.Now().AddDate(1, 0, 0)
	held := f.restock(t, "LOT-9", "10", expiry)

	tests := []struct {
		name   string
		cost   string
		expiry time.Time
	}{
		{name: "different unit cost", cost: "2.40", expiry: expiry},
		{name: "different expiry", cost: "2.00", expiry: expiry.AddDate(0, 3, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Restock(f.ctx, f.tc, batch.RestockInput{
				ProductID:   f.product.ID,
				BatchNumber: "LOT-9",
				Quantity:    types.MustQuantity("5"),
				UnitCost:    types.MustMoney(tt.cost),
				SalePrice:   types.MustMoney("3.00"),
				ExpiryDate:  &tt.expiry,
			})
			assert.True(t, apperror.Is(err, apperror.CodeValidation), "got %v", err)
		})
	}

	batches, err := f.svc.ListBatches(f.ctx, f.tc, f.product.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].UnitCost.Equal(held.UnitCost))
	assert.True(t, batches[0].QuantityOnHand.Equal(types.MustQuantity("10")))

	// Once depleted, the batch takes the next receipt's cost.
	_, err = f.svc.Allocate(f.ctx, f.tc, batch.AllocateRequest{ProductID: f.product.ID, Quantity: types.MustQuantity("10")})
	require.NoError(t, err)
	res, err := f.svc.Restock(f.ctx, f.tc, batch.RestockInput{
		ProductID:   f.product.ID,
		BatchNumber: "LOT-9",
		Quantity:    types.MustQuantity("5"),
		UnitCost:    types.MustMoney("2.40"),
		SalePrice:   types.MustMoney("3.00"),
		ExpiryDate:  &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, held.ID, res.Batch.ID)
	assert.True(t, res.Batch.UnitCost.Equal(types.MustMoney("2.40")))
}

func TestService_RestockPricingPolicy(t *testing.T) {
	in := batch.RestockInput{
		BatchNumber: "CHEAP",
		Quantity:    types.MustQuantity("10"),
		UnitCost:    types.MustMoney("5.00"),
		SalePrice:   types.MustMoney("4.00"),
		MRP:         decimal.NewNullDecimal(types.MustMoney("6.00")),
	}

	soft := newFixture(t, nil)
	in.ProductID = soft.product.ID
	res, err := soft.svc.Restock(soft.ctx, soft.tc, in)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Contains(t, res.Warnings, pricing.ReasonSaleBelowCost)

	cfg := pricing.DefaultPolicyConfig()
	cfg.SaleBelowCost = pricing.SeverityHard
	policy, err := pricing.NewPolicy(cfg)
	require.NoError(t, err)

	hard := newFixture(t, policy)
	in.ProductID = hard.product.ID
	_, err = hard.svc.Restock(hard.ctx, hard.tc, in)
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	assert.Empty(t, hard.onHand(t))
}

func TestService_ReverseIsIdempotentPerReference(t *testing.T) {
	f := newFixture(t, nil)
	b := f.restock(t, "R1", "10", time.Now().AddDate(1, 0, 0))

	_, err := f.svc.Allocate(f.ctx, f.tc, batch.AllocateRequest{ProductID: f.product.ID, Quantity: types.MustQuantity("4")})
	require.NoError(t, err)

	in := batch.ReverseInput{BatchID: b.ID, Quantity: types.MustQuantity("4"), Reference: "return:line-1"}
	got, err := f.svc.Reverse(f.ctx, f.tc, in)
	require.NoError(t, err)
	assert.True(t, got.QuantityOnHand.Equal(types.MustQuantity("10")))

	_, err = f.svc.Reverse(f.ctx, f.tc, in)
	assert.True(t, apperror.Is(err, apperror.CodeAlreadyReversed))
	assert.Equal(t, map[string]string{"R1": "10"}, f.onHand(t))
}

func TestService_OtherTenantSeesNoStock(t *testing.T) {
	f := newFixture(t, nil)
	b := f.restock(t, "T1", "10", time.Now().AddDate(1, 0, 0))

	other := tenant.New(id.New(), "intruder")
	_, err := f.svc.Allocate(f.ctx, other, batch.AllocateRequest{ProductID: f.product.ID, Quantity: types.MustQuantity("1")})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))

	_, err = f.svc.Reverse(f.ctx, other, batch.ReverseInput{BatchID: b.ID, Quantity: types.MustQuantity("1"), Reference: "x"})
	assert.True(t, apperror.IsNotFound(err))
}
