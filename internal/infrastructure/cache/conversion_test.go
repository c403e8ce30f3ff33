package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/infrastructure/storage/memory"
)

func TestConversionKey(t *testing.T) {
	tenantID, companyID, productID := id.New(), id.New(), id.New()
	tc := tenant.New(tenantID, "u")

	assert.Equal(t,
		"uom:"+tenantID.String()+":"+productID.String()+":strip:tablet",
		conversionKey(tc, productID, " Strip", "TABLET"))

	assert.Equal(t,
		"uom:"+tenantID.String()+":"+productID.String()+":strip:tablet:"+companyID.String(),
		conversionKey(tc.WithCompany(companyID), productID, "strip", "tablet"))
}

// unreachableClient fails every command quickly so the decorator has to
// fall back to the repository.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConversionCache_FallsBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	tc := tenant.New(id.New(), "pharmacist")
	productID := id.New()

	conv := uom.NewConversion(tc, productID, "strip", "tablet", decimal.NewFromInt(10))
	require.NoError(t, repos.Conversions.Create(ctx, conv))

	cached := NewConversionCache(repos.Conversions, unreachableClient(t), 0)

	got, err := cached.Find(ctx, tc, productID, "strip", "tablet")
	require.NoError(t, err)
	assert.True(t, got.Factor.Equal(decimal.NewFromInt(10)))

	_, err = cached.Find(ctx, tc, productID, "tablet", "strip")
	assert.True(t, apperror.IsNotFound(err))
}
