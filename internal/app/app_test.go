package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/pricing"
	"medcore/internal/infrastructure/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App:          config.AppConfig{Name: "medcore", Env: "test", Store: config.StoreMemory},
		Notification: config.NotificationConfig{QueueSize: 8, Workers: 1},
		Pricing:      pricing.DefaultPolicyConfig(),
		Settings:     map[string]string{"default_currency": "INR"},
	}
}

func TestNewServices_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	b, err := NewBackend(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.Nil(t, b.Outbox)
	assert.Nil(t, b.Idempotency)

	svc, err := NewServices(b, cfg, nil)
	require.NoError(t, err)
	defer svc.Close()
	require.NotNil(t, svc.Dispatcher)
	require.NotNil(t, svc.Reports)

	tc := tenant.New(id.New(), "admin")
	p, err := svc.Products.Create(ctx, tc, product.CreateInput{
		SKU:       "PCM-500",
		Name:      "Paracetamol 500mg",
		BaseUnit:  "tablet",
		ListPrice: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	_, err = svc.Units.Declare(ctx, tc, p.ID, "strip", "tablet", decimal.NewFromInt(10))
	require.NoError(t, err)

	qty, err := svc.Units.Convert(ctx, tc, p.ID, "strip", "tablet", decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(30)))

	cur, err := svc.Settings.DefaultCurrency(ctx, tc)
	require.NoError(t, err)
	assert.Equal(t, "INR", cur)
}

func TestNewServices_RejectsBadPricingRule(t *testing.T) {
	cfg := testConfig()
	cfg.Pricing.Rules = []pricing.Rule{{Name: "broken", Expr: "cost +", Message: "x", Severity: pricing.SeveritySoft}}

	_, err := NewServices(NewMemoryBackend(), cfg, nil)
	assert.Error(t, err)
}
