// Package settings resolves typed configuration keys with a fixed
// precedence: company, then tenant, then the global defaults from config.
// A key absent at every level is NOT_CONFIGURED; nothing is guessed.
package settings

import (
	"context"
	"strings"
	"time"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

// Key names a setting.
type Key string

const (
	KeyDefaultCurrency        Key = "default_currency"
	KeyRegistrationFeeProduct Key = "registration_fee_product"
	KeyPricingPolicy          Key = "pricing_policy"
)

// Level is where a resolved value came from.
type Level string

const (
	LevelCompany Level = "company"
	LevelTenant  Level = "tenant"
	LevelGlobal  Level = "global"
)

// Setting is one stored override. A nil company makes it tenant-wide.
type Setting struct {
	ID id.ID `db:"id" json:"id"`
	tenant.Scope

	Key       Key       `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Resolved is the effective value of a key.
type Resolved struct {
	Key   Key    `json:"key"`
	Value string `json:"value"`
	Level Level  `json:"level"`
}

// Repository stores overrides.
type Repository interface {
	// Get returns the override stored for exactly (tenant, company, key),
	// or NOT_FOUND.
	Get(ctx context.Context, scope tenant.Scope, key Key) (*Setting, error)

	// Put inserts or replaces the override for (tenant, company, key).
	Put(ctx context.Context, s *Setting) error
}

// Resolver resolves keys for a caller.
type Resolver struct {
	repo   Repository
	global map[Key]string
}

// NewResolver creates a resolver with global defaults.
func NewResolver(repo Repository, global map[Key]string) *Resolver {
	g := make(map[Key]string, len(global))
	for k, v := range global {
		if strings.TrimSpace(v) != "" {
			g[k] = v
		}
	}
	return &Resolver{repo: repo, global: g}
}

type levelScope struct {
	scope tenant.Scope
	level Level
}

// Resolve walks company, tenant and global levels in that order.
func (r *Resolver) Resolve(ctx context.Context, tc tenant.Context, key Key) (Resolved, error) {
	if err := tc.Validate(); err != nil {
		return Resolved{}, err
	}

	scopes := make([]levelScope, 0, 2)
	if tc.HasCompany() {
		scopes = append(scopes, levelScope{tc.Scope(), LevelCompany})
	}
	scopes = append(scopes, levelScope{tenant.Scope{TenantID: tc.TenantID}, LevelTenant})

	for _, s := range scopes {
		setting, err := r.repo.Get(ctx, s.scope, key)
		if apperror.IsNotFound(err) {
			continue
		}
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Key: key, Value: setting.Value, Level: s.level}, nil
	}

	if v, ok := r.global[key]; ok {
		return Resolved{Key: key, Value: v, Level: LevelGlobal}, nil
	}
	return Resolved{}, apperror.NewNotConfigured(string(key))
}

// Set stores an override at the company level when tc has a company,
// otherwise tenant-wide.
func (r *Resolver) Set(ctx context.Context, tc tenant.Context, key Key, value string) (*Setting, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(value) == "" {
		return nil, apperror.NewValidation("setting value is required")
	}
	s := &Setting{
		ID:        id.New(),
		Scope:     tc.Scope(),
		Key:       key,
		Value:     strings.TrimSpace(value),
		UpdatedBy: tc.UserID,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.repo.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultCurrency resolves KeyDefaultCurrency as an upper-case ISO code.
func (r *Resolver) DefaultCurrency(ctx context.Context, tc tenant.Context) (string, error) {
	res, err := r.Resolve(ctx, tc, KeyDefaultCurrency)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(res.Value), nil
}

// RegistrationFeeProduct resolves the product billed as registration fee.
func (r *Resolver) RegistrationFeeProduct(ctx context.Context, tc tenant.Context) (id.ID, error) {
	res, err := r.Resolve(ctx, tc, KeyRegistrationFeeProduct)
	if err != nil {
		return id.Nil(), err
	}
	productID, err := id.Parse(res.Value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("registration fee product is not a valid id").
			WithDetail("value", res.Value)
	}
	return productID, nil
}
