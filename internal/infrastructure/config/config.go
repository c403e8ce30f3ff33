// Package config loads service configuration from config.toml and
// MEDCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"medcore/internal/domain/auth"
	"medcore/internal/domain/pricing"
	"medcore/internal/domain/settings"
	"medcore/pkg/logger"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	App          AppConfig            `mapstructure:"app"`
	Database     DatabaseConfig       `mapstructure:"database"`
	Redis        RedisConfig          `mapstructure:"redis"`
	Log          LogConfig            `mapstructure:"log"`
	HTTP         HTTPConfig           `mapstructure:"http"`
	Auth         AuthConfig           `mapstructure:"auth"`
	Outbox       OutboxConfig         `mapstructure:"outbox"`
	Idempotency  IdempotencyConfig    `mapstructure:"idempotency"`
	Ledger       LedgerConfig         `mapstructure:"ledger"`
	Notification NotificationConfig   `mapstructure:"notification"`
	Alerts       AlertsConfig         `mapstructure:"alerts"`
	Pricing      pricing.PolicyConfig `mapstructure:"pricing"`
	Settings     map[string]string    `mapstructure:"settings"`
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Env   string `mapstructure:"env" validate:"oneof=development staging production test"`
	Store string `mapstructure:"store" validate:"oneof=memory postgres"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns" validate:"gte=1"`
	MinConns        int32         `mapstructure:"min_conns" validate:"gte=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
	// StatementTimeout is applied per connection; zero keeps the server default.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// RedisConfig holds the conversion cache connection.
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db" validate:"gte=0"`
	ConversionTTL time.Duration `mapstructure:"conversion_ttl"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format      string `mapstructure:"format" validate:"oneof=json console"`
	Development bool   `mapstructure:"development"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig controls how the caller context is resolved. With tokens
// disabled the X-Tenant-ID, X-Company-ID and X-User-ID headers are trusted.
type AuthConfig struct {
	TokenRequired bool          `mapstructure:"token_required"`
	Secret        string        `mapstructure:"secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	// VerifyTenants checks every caller against the tenants table (postgres store only).
	VerifyTenants bool `mapstructure:"verify_tenants"`
}

// OutboxConfig drives the worker relay.
type OutboxConfig struct {
	BatchSize      int           `mapstructure:"batch_size" validate:"gte=1"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	DLQInterval    time.Duration `mapstructure:"dlq_interval"`
	PurgeRetention time.Duration `mapstructure:"purge_retention"`
}

// IdempotencyConfig controls replay of retried mutating requests.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LedgerConfig controls snapshot storage.
type LedgerConfig struct {
	CompressThreshold int `mapstructure:"compress_threshold" validate:"gte=0"`
}

// NotificationConfig sizes the in-process dispatcher.
type NotificationConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"gte=1"`
	Workers   int `mapstructure:"workers" validate:"gte=1"`
}

// AlertsConfig controls post-commit stock alerts.
type AlertsConfig struct {
	// LowStock is the available base-unit quantity at or below which posting
	// a sales invoice logs a warning. Empty disables the alert.
	LowStock string `mapstructure:"low_stock"`
}

// IsProduction returns true when running in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// LoggerConfig maps the log section to the logger package.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
		Encoding:    c.Log.Format,
		Service:     c.App.Name,
	}
}

// JWTConfig returns the token settings.
func (c *Config) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{Secret: c.Auth.Secret, Issuer: c.Auth.Issuer, TokenTTL: c.Auth.TokenTTL}
}

// GlobalSettings returns the global layer for the settings resolver.
func (c *Config) GlobalSettings() map[settings.Key]string {
	out := make(map[settings.Key]string, len(c.Settings))
	for k, v := range c.Settings {
		out[settings.Key(k)] = v
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "medcore")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.store", StoreMemory)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.migrate_on_start", false)
	v.SetDefault("database.statement_timeout", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.conversion_ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.development", false)

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("auth.token_required", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "medcore")
	v.SetDefault("auth.token_ttl", 15*time.Minute)
	v.SetDefault("auth.verify_tenants", false)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.dlq_interval", time.Minute)
	v.SetDefault("outbox.purge_retention", 7*24*time.Hour)

	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("ledger.compress_threshold", 4096)

	v.SetDefault("notification.queue_size", 256)
	v.SetDefault("notification.workers", 2)

	v.SetDefault("alerts.low_stock", "")

	v.SetDefault("pricing.sale_below_cost", string(pricing.SeveritySoft))
	v.SetDefault("pricing.sale_above_mrp", string(pricing.SeveritySoft))

	v.SetDefault("settings.default_currency", "")
}

// Load reads configuration. Priority (highest to lowest):
//  1. Environment variables with MEDCORE_ prefix (e.g. MEDCORE_DATABASE_URL)
//  2. config.toml (path, or the working directory when path is empty)
//  3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/medcore")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MEDCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.App.Store == StorePostgres && c.Database.URL == "" {
		return fmt.Errorf("invalid config: database.url is required for the postgres store")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid config: database.min_conns exceeds max_conns")
	}
	if c.Auth.TokenRequired && len(c.Auth.Secret) < 32 {
		return fmt.Errorf("invalid config: auth.secret must be at least 32 characters when tokens are required")
	}
	if c.Auth.VerifyTenants && c.App.Store != StorePostgres {
		return fmt.Errorf("invalid config: auth.verify_tenants requires the postgres store")
	}
	if c.IsProduction() && !c.Auth.TokenRequired {
		return fmt.Errorf("invalid config: auth.token_required must be enabled in production")
	}
	return nil
}
