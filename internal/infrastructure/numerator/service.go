// Package numerator provides the PostgreSQL implementation of document auto-numbering.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "medcore/internal/core/numerator"
	"medcore/internal/core/tenant"
)

// Querier is the subset of pgx used for sequence updates.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierSource yields the querier for ctx (transaction when one is active).
type QuerierSource func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering backed by sys_sequences.
// Counters are keyed by (tenant_id, company_id, key).
type Service struct {
	querier QuerierSource

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator over a fixed querier.
func New(q Querier) *Service {
	return NewWithSource(func(context.Context) Querier { return q })
}

// NewWithSource creates a numerator that resolves its querier per call.
func NewWithSource(src QuerierSource) *Service {
	return &Service{
		querier: src,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next document number.
func (s *Service) GetNextNumber(ctx context.Context, tc tenant.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := cfg.Key(period)
	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, tc, key, opts)
	default:
		num, err = s.getNextStrict(ctx, tc, key)
	}
	if err != nil {
		return "", err
	}

	return cfg.Format(period, num), nil
}

// getNextStrict bumps the counter by one using UPSERT + RETURNING.
func (s *Service) getNextStrict(ctx context.Context, tc tenant.Context, key string) (int64, error) {
	return s.bump(ctx, tc, key, 1)
}

func (s *Service) bump(ctx context.Context, tc tenant.Context, key string, by int64) (int64, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (tenant_id, company_id, key, current_val)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, company_id, key) DO UPDATE SET current_val = sys_sequences.current_val + $4
		RETURNING current_val
	`, tc.TenantID, tc.CompanyID, key, by).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("next sequence value %s: %w", key, err)
	}
	return num, nil
}

// getNextCached serves numbers from memory, reserving a new range when exhausted.
func (s *Service) getNextCached(ctx context.Context, tc tenant.Context, key string, opts *corenumerator.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cacheKey := cacheKeyFor(tc, key)
	rng, exists := s.ranges[cacheKey]
	if !exists {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}
		newMax, err := s.bump(ctx, tc, key, size)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}
		// current_val is the last reserved number, so the range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the counter value and drops any cached range.
func (s *Service) SetNextNumber(ctx context.Context, tc tenant.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := cfg.Key(period)

	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (tenant_id, company_id, key, current_val)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, company_id, key) DO UPDATE SET current_val = $4
		RETURNING current_val
	`, tc.TenantID, tc.CompanyID, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, cacheKeyFor(tc, key))
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set sequence value %s: %w", key, err)
	}
	return nil
}

func cacheKeyFor(tc tenant.Context, key string) string {
	return fmt.Sprintf("%s:%s:%s", tc.TenantID, tc.CompanyID, key)
}
