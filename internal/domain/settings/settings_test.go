package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

type mapRepo map[tenant.Scope]map[Key]*Setting

func (m mapRepo) Get(_ context.Context, scope tenant.Scope, key Key) (*Setting, error) {
	if s, ok := m[scope][key]; ok {
		return s, nil
	}
	return nil, apperror.NewNotFound("setting", key)
}

func (m mapRepo) Put(_ context.Context, s *Setting) error {
	if m[s.Scope] == nil {
		m[s.Scope] = map[Key]*Setting{}
	}
	m[s.Scope][s.Key] = s
	return nil
}

func TestResolver_Precedence(t *testing.T) {
	ctx := context.Background()
	tenantID, companyID := id.New(), id.New()
	tenantWide := tenant.New(tenantID, "admin")
	company := tenantWide.WithCompany(companyID)

	r := NewResolver(mapRepo{}, map[Key]string{KeyDefaultCurrency: "usd"})

	res, err := r.Resolve(ctx, company, KeyDefaultCurrency)
	require.NoError(t, err)
	assert.Equal(t, LevelGlobal, res.Level)

	_, err = r.Set(ctx, tenantWide, KeyDefaultCurrency, "EUR")
	require.NoError(t, err)
	res, err = r.Resolve(ctx, company, KeyDefaultCurrency)
	require.NoError(t, err)
	assert.Equal(t, LevelTenant, res.Level)
	assert.Equal(t, "EUR", res.Value)

	_, err = r.Set(ctx, company, KeyDefaultCurrency, "inr")
	require.NoError(t, err)
	cur, err := r.DefaultCurrency(ctx, company)
	require.NoError(t, err)
	assert.Equal(t, "INR", cur)

	// Another company of the same tenant still sees the tenant value.
	cur, err = r.DefaultCurrency(ctx, tenantWide.WithCompany(id.New()))
	require.NoError(t, err)
	assert.Equal(t, "EUR", cur)
}

func TestResolver_NotConfigured(t *testing.T) {
	r := NewResolver(mapRepo{}, map[Key]string{KeyRegistrationFeeProduct: "  "})

	_, err := r.RegistrationFeeProduct(context.Background(), tenant.New(id.New(), "u"))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeNotConfigured))
}

func TestResolver_RegistrationFeeProduct(t *testing.T) {
	ctx := context.Background()
	tc := tenant.New(id.New(), "u")
	productID := id.New()

	r := NewResolver(mapRepo{}, nil)
	_, err := r.Set(ctx, tc, KeyRegistrationFeeProduct, productID.String())
	require.NoError(t, err)

	got, err := r.RegistrationFeeProduct(ctx, tc)
	require.NoError(t, err)
	assert.Equal(t, productID, got)
}
