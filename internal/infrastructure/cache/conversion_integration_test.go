//go:build integration

package cache

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/infrastructure/storage/memory"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, endpoint, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConversionCache_Redis(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)
	repos := memory.New().Repositories()
	tc := tenant.New(id.New(), "pharmacist")
	productID := id.New()

	cached := NewConversionCache(repos.Conversions, client, 0)

	_, err := cached.Find(ctx, tc, productID, "strip", "tablet")
	require.Error(t, err)
	exists, err := client.Exists(ctx, conversionKey(tc, productID, "strip", "tablet")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "misses must not be cached")

	conv := uom.NewConversion(tc, productID, "strip", "tablet", decimal.RequireFromString("10"))
	require.NoError(t, cached.Create(ctx, conv))

	first, err := cached.Find(ctx, tc, productID, "strip", "tablet")
	require.NoError(t, err)
	second, err := cached.Find(ctx, tc, productID, "strip", "tablet")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Factor.Equal(conv.Factor))

	other := tenant.New(id.New(), "intruder")
	_, err = cached.Find(ctx, other, productID, "strip", "tablet")
	assert.Error(t, err)
}
