// Package numerator numbers posted documents: INV-2026-00001, GRN-2026-00001,
// RCT-2026-00001. Counters are per tenant, company, prefix and period.
// The postgres implementation lives in infrastructure/numerator; the memory
// store carries its own.
package numerator

import (
	"context"
	"time"

	"medcore/internal/core/tenant"
)

// Generator hands out document numbers.
type Generator interface {
	// GetNextNumber reserves the next number of cfg's counter for period.
	// Inside a transaction the reservation rolls back with it (strict strategy).
	GetNextNumber(ctx context.Context, tc tenant.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber records value as the last number used, so the next
	// GetNextNumber returns value+1. Used when importing legacy documents.
	SetNextNumber(ctx context.Context, tc tenant.Context, cfg Config, period time.Time, value int64) error
}
