package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(secret))
	want := tenant.New(id.New(), "dr.rao").WithCompany(id.New())

	token, expires, err := svc.IssueToken(want)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, want.TenantID, got.TenantID)
	assert.Equal(t, want.CompanyID, got.CompanyID)
	assert.Equal(t, "dr.rao", got.UserID)
}

func TestJWTService_TenantWideToken(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(secret))
	token, _, err := svc.IssueToken(tenant.New(id.New(), "admin"))
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.False(t, got.HasCompany())
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(secret))
	tc := tenant.New(id.New(), "admin")

	other := NewJWTService(DefaultJWTConfig("ffffffffffffffffffffffffffffffff"))
	foreign, _, err := other.IssueToken(tc)
	require.NoError(t, err)

	expiredCfg := DefaultJWTConfig(secret)
	expiredCfg.TokenTTL = -time.Minute
	expired, _, err := NewJWTService(expiredCfg).IssueToken(tc)
	require.NoError(t, err)

	noTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "medcore", Subject: "admin"},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "medcore"},
		TenantID:         id.New().String(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": foreign,
		"expired":      expired,
		"missing tid":  noTenant,
		"missing sub":  noUser,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
