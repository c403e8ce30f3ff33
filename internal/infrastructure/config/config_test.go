package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/domain/pricing"
	"medcore/internal/domain/settings"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "medcore", cfg.App.Name)
	assert.Equal(t, StoreMemory, cfg.App.Store)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, pricing.SeveritySoft, cfg.Pricing.SaleBelowCost)
	assert.Equal(t, pricing.SeveritySoft, cfg.Pricing.SaleAboveMRP)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
[app]
store = "postgres"

[database]
url = "postgres://file/medcore"
max_conns = 10
min_conns = 2

[pricing]
sale_below_cost = "hard"

[[pricing.rules]]
name = "min_margin"
expr = "margin_pct >= 5.0"
message = "margin below 5%"
severity = "soft"

[settings]
default_currency = "INR"
`)
	t.Setenv("MEDCORE_DATABASE_URL", "postgres://env/medcore")
	t.Setenv("MEDCORE_HTTP_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.App.Store)
	assert.Equal(t, "postgres://env/medcore", cfg.Database.URL)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, pricing.SeverityHard, cfg.Pricing.SaleBelowCost)
	require.Len(t, cfg.Pricing.Rules, 1)
	assert.Equal(t, "min_margin", cfg.Pricing.Rules[0].Name)
	assert.Equal(t, "INR", cfg.GlobalSettings()[settings.KeyDefaultCurrency])

	_, err = pricing.NewPolicy(cfg.Pricing)
	require.NoError(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "postgres without url", body: "[app]\nstore = \"postgres\"\n"},
		{name: "unknown store", body: "[app]\nstore = \"sqlite\"\n"},
		{name: "short token secret", body: "[auth]\ntoken_required = true\nsecret = \"short\"\n"},
		{name: "production without tokens", body: "[app]\nenv = \"production\"\n"},
		{name: "tenant registry without postgres", body: "[auth]\nverify_tenants = true\n"},
		{name: "bad pricing severity", body: "[pricing]\nsale_above_mrp = \"maybe\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
