// Package app wires repositories and domain services for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	corenumerator "medcore/internal/core/numerator"
	"medcore/internal/core/tenant"
	"medcore/internal/core/tx"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/documents/payment"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/posting"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/domain/settings"
	"medcore/internal/infrastructure/cache"
	"medcore/internal/infrastructure/config"
	"medcore/internal/infrastructure/numerator"
	"medcore/internal/infrastructure/storage/memory"
	"medcore/internal/infrastructure/storage/postgres"
	"medcore/internal/infrastructure/storage/postgres/catalog_repo"
	"medcore/internal/infrastructure/storage/postgres/document_repo"
	"medcore/internal/infrastructure/storage/postgres/migrations"
	"medcore/internal/infrastructure/storage/postgres/register_repo"
	"medcore/pkg/logger"
)

// Backend is one storage implementation of every repository.
type Backend struct {
	TxManager   tx.Manager
	Products    product.Repository
	Conversions uom.Repository
	Batches     batch.Repository
	Documents   invoice.Repository
	Payments    payment.Repository
	Ledger      ledger.Repository
	Settings    settings.Repository
	Numerator   corenumerator.Generator

	// Outbox is nil for the memory store; events then go straight to the dispatcher.
	Outbox posting.Outbox
	// Idempotency is nil for the memory store.
	Idempotency *postgres.IdempotencyStore
	// Pool is nil for the memory store.
	Pool *postgres.Pool
	// Tenants is the tenant registry; nil for the memory store.
	Tenants *tenant.PostgresRegistry

	redis   *redis.Client
	closers []func()
}

// HealthChecks returns the readiness probes of the external dependencies.
func (b *Backend) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if b.Pool != nil {
		checks["database"] = b.Pool.Ping
	}
	if b.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.redis.Ping(ctx).Err() }
	}
	return checks
}

// NewMemoryBackend returns a backend over a fresh in-memory store.
func NewMemoryBackend() *Backend {
	store := memory.New()
	repos := store.Repositories()
	return &Backend{
		TxManager:   store,
		Products:    repos.Products,
		Conversions: repos.Conversions,
		Batches:     repos.Batches,
		Documents:   repos.Documents,
		Payments:    repos.Payments,
		Ledger:      repos.Ledger,
		Settings:    repos.Settings,
		Numerator:   repos.Numerator,
	}
}

// NewPostgresBackend connects to the database (migrating first when
// configured) and builds the pgx repositories.
func NewPostgresBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if cfg.Database.MigrateOnStart {
		if err := Migrate(ctx, cfg.Database.URL); err != nil {
			return nil, err
		}
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.ApplicationName = cfg.App.Name
	poolCfg.StatementTimeout = cfg.Database.StatementTimeout
	if cfg.Database.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	if cfg.Database.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return NewPostgresBackendFromPool(pool, cfg)
}

// NewPostgresBackendFromPool builds the repositories over an open pool.
// The backend takes ownership of pool.
func NewPostgresBackendFromPool(pool *postgres.Pool, cfg *config.Config) (*Backend, error) {
	codec, err := postgres.NewSnapshotCodec(cfg.Ledger.CompressThreshold)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create snapshot codec: %w", err)
	}

	tm := postgres.NewTxManager(pool)
	return &Backend{
		TxManager:   tm,
		Products:    catalog_repo.NewProductRepo(tm),
		Conversions: catalog_repo.NewConversionRepo(tm),
		Batches:     register_repo.NewBatchRepo(tm),
		Documents:   document_repo.NewInvoiceRepo(tm),
		Payments:    document_repo.NewPaymentRepo(tm),
		Ledger:      register_repo.NewLedgerRepo(tm, codec),
		Settings:    catalog_repo.NewSettingsRepo(tm),
		Numerator: numerator.NewWithSource(func(ctx context.Context) numerator.Querier {
			return tm.GetQuerier(ctx)
		}),
		Outbox:      postgres.NewOutboxPublisher(tm),
		Idempotency: postgres.NewIdempotencyStore(tm, cfg.Idempotency.TTL),
		Pool:        pool,
		Tenants:     tenant.NewPostgresRegistry(pool.Pool),
		closers:     []func(){pool.Close},
	}, nil
}

// NewBackend picks the store named by app.store and applies the redis
// conversion cache when enabled.
func NewBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	var (
		b   *Backend
		err error
	)
	switch cfg.App.Store {
	case config.StorePostgres:
		b, err = NewPostgresBackend(ctx, cfg)
	default:
		b = NewMemoryBackend()
	}
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.WithConversionCache(client, cfg.Redis)
	}
	return b, nil
}

// WithConversionCache puts the redis read-through cache in front of the
// conversion repository. The backend closes client.
func (b *Backend) WithConversionCache(client *redis.Client, cfg config.RedisConfig) *Backend {
	b.Conversions = cache.NewConversionCache(b.Conversions, client, cfg.ConversionTTL)
	b.redis = client
	b.closers = append(b.closers, func() { _ = client.Close() })
	logger.Info(context.Background(), "conversion cache enabled", "addr", cfg.Addr, "ttl", cfg.ConversionTTL)
	return b
}

// Close releases connections in reverse order of acquisition.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Migrate applies the embedded schema to dsn.
func Migrate(ctx context.Context, dsn string) error {
	m, err := migrations.New(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up(ctx)
}
