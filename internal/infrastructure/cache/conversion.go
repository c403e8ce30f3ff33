// Package cache provides Redis-backed read-through caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/catalogs/uom"
	"medcore/pkg/logger"
)

// DefaultConversionTTL bounds how long a declared conversion stays cached.
const DefaultConversionTTL = 10 * time.Minute

// ConversionCache wraps a uom.Repository with a Redis read-through cache
// for Find. Misses are never cached, so a newly declared conversion is
// visible on the next lookup. Redis failures fall back to the repository.
type ConversionCache struct {
	next   uom.Repository
	client redis.UniversalClient
	ttl    time.Duration
}

var _ uom.Repository = (*ConversionCache)(nil)

// NewConversionCache creates the decorator. A zero ttl uses DefaultConversionTTL.
func NewConversionCache(next uom.Repository, client redis.UniversalClient, ttl time.Duration) *ConversionCache {
	if ttl <= 0 {
		ttl = DefaultConversionTTL
	}
	return &ConversionCache{next: next, client: client, ttl: ttl}
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// conversionKey is uom:{tenant}:{product}:{from}:{to}. Company-restricted
// callers get their own entry since they may see a company-only record.
func conversionKey(tc tenant.Context, productID id.ID, from, to string) string {
	key := fmt.Sprintf("uom:%s:%s:%s:%s", tc.TenantID, productID, uom.NormalizeUnit(from), uom.NormalizeUnit(to))
	if tc.HasCompany() {
		key += ":" + tc.CompanyID.String()
	}
	return key
}

func (c *ConversionCache) Create(ctx context.Context, conv *uom.Conversion) error {
	return c.next.Create(ctx, conv)
}

func (c *ConversionCache) Find(ctx context.Context, tc tenant.Context, productID id.ID, from, to string) (*uom.Conversion, error) {
	key := conversionKey(tc, productID, from, to)

	if conv, ok := c.get(ctx, tc, key); ok {
		return conv, nil
	}

	conv, err := c.next.Find(ctx, tc, productID, from, to)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, conv)
	return conv, nil
}

func (c *ConversionCache) ListByProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*uom.Conversion, error) {
	return c.next.ListByProduct(ctx, tc, productID)
}

func (c *ConversionCache) get(ctx context.Context, tc tenant.Context, key string) (*uom.Conversion, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn(ctx, "conversion cache read failed", "key", key, "error", err)
		return nil, false
	}

	var conv uom.Conversion
	if err := json.Unmarshal(data, &conv); err != nil {
		logger.Warn(ctx, "dropping corrupt conversion cache entry", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	// Entries are keyed by tenant, so this only trips on a poisoned key.
	if !tc.Owns(conv.Scope) {
		return nil, false
	}
	return &conv, true
}

func (c *ConversionCache) set(ctx context.Context, key string, conv *uom.Conversion) {
	data, err := json.Marshal(conv)
	if err != nil {
		logger.Warn(ctx, "conversion cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "conversion cache write failed", "key", key, "error", err)
	}
}
