package memory

import (
	"context"
	"time"

	corenumerator "medcore/internal/core/numerator"
	"medcore/internal/core/tenant"
)

// Numerator implements numerator.Generator with gapless in-memory counters.
// Options are ignored; every strategy behaves as strict.
type Numerator struct {
	s *Store
}

var _ corenumerator.Generator = (*Numerator)(nil)

func counterKey(tc tenant.Context, cfg corenumerator.Config, period time.Time) string {
	return tc.TenantID.String() + "/" + tc.CompanyID.String() + "/" + cfg.Key(period)
}

func (n *Numerator) GetNextNumber(ctx context.Context, tc tenant.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	if err := tc.Validate(); err != nil {
		return "", err
	}
	var next int64
	_ = n.s.do(ctx, func(st *state) error {
		key := counterKey(tc, cfg, period)
		st.sequences[key]++
		next = st.sequences[key]
		return nil
	})
	return cfg.Format(period, next), nil
}

func (n *Numerator) SetNextNumber(ctx context.Context, tc tenant.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	return n.s.do(ctx, func(st *state) error {
		st.sequences[counterKey(tc, cfg, period)] = value
		return nil
	})
}
