// Package auth verifies the signed bearer tokens that carry the caller's
// tenant, company and user. Issuing tokens to end users happens elsewhere;
// IssueToken exists for service-to-service callers and tests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:   secret,
		Issuer:   "medcore",
		TokenTTL: 15 * time.Minute,
	}
}

// Claims represents JWT claims. The subject is the acting user.
type Claims struct {
	jwt.RegisteredClaims
	TenantID  string `json:"tid"`
	CompanyID string `json:"cid,omitempty"`
}

// JWTService signs and verifies HS256 tokens.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// IssueToken signs a token for tc.
func (s *JWTService) IssueToken(tc tenant.Context) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   tc.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID: tc.TenantID.String(),
	}
	if tc.HasCompany() {
		claims.CompanyID = tc.CompanyID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies tokenString and returns the caller it names.
func (s *JWTService) ValidateToken(tokenString string) (tenant.Context, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return tenant.Context{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return tenant.Context{}, ErrInvalidToken
	}

	tenantID, err := id.Parse(claims.TenantID)
	if err != nil {
		return tenant.Context{}, fmt.Errorf("%w: tenant claim: %w", ErrInvalidToken, err)
	}
	tc := tenant.New(tenantID, claims.Subject)
	companyID, err := id.ParseOptional(claims.CompanyID)
	if err != nil {
		return tenant.Context{}, fmt.Errorf("%w: company claim: %w", ErrInvalidToken, err)
	}
	if !id.IsNil(companyID) {
		tc = tc.WithCompany(companyID)
	}

	if err := tc.Validate(); err != nil {
		return tenant.Context{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return tc, nil
}
