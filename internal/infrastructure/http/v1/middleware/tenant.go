package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/pkg/logger"
)

const (
	// TenantHeader identifies the tenant when token auth is disabled.
	TenantHeader = "X-Tenant-ID"
	// CompanyHeader optionally restricts the caller to one company.
	CompanyHeader = "X-Company-ID"
	// UserHeader names the acting user.
	UserHeader = "X-User-ID"

	ctxCaller = "caller"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (tenant.Context, error)
}

// TenantOptions configures TenantContext.
type TenantOptions struct {
	// Tokens, when set, makes a bearer token mandatory and the headers are ignored.
	Tokens TokenValidator
	// Registry, when set, rejects unknown or suspended tenants and foreign companies.
	Registry tenant.Registry
}

// TenantContext resolves the caller (tenant, company, user) for every request
// and attaches it to the request context. Requests without a valid caller
// never reach a handler.
func TenantContext(opts TenantOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			tc  tenant.Context
			err error
		)
		if opts.Tokens != nil {
			tc, err = fromToken(c, opts.Tokens)
		} else {
			tc, err = fromHeaders(c)
		}
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		if opts.Registry != nil {
			if err := tenant.Verify(ctx, opts.Registry, tc); err != nil {
				_ = c.Error(registryError(tc, err))
				c.Abort()
				return
			}
		}

		c.Request = c.Request.WithContext(tenant.Attach(ctx, tc))
		c.Set(ctxCaller, tc)
		c.Next()
	}
}

// CallerFrom returns the caller resolved by TenantContext.
func CallerFrom(c *gin.Context) (tenant.Context, bool) {
	v, ok := c.Get(ctxCaller)
	if !ok {
		return tenant.Context{}, false
	}
	tc, ok := v.(tenant.Context)
	return tc, ok
}

func fromToken(c *gin.Context, tokens TokenValidator) (tenant.Context, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return tenant.Context{}, apperror.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return tenant.Context{}, apperror.NewUnauthorized("invalid authorization header format")
	}

	tc, err := tokens.ValidateToken(parts[1])
	if err != nil {
		logger.Warn(c.Request.Context(), "token rejected", "error", err)
		return tenant.Context{}, apperror.NewUnauthorized("invalid token")
	}
	return tc, nil
}

func fromHeaders(c *gin.Context) (tenant.Context, error) {
	rawTenant := c.GetHeader(TenantHeader)
	if rawTenant == "" {
		return tenant.Context{}, apperror.NewUnauthorized("tenant is required").
			WithDetail("header", TenantHeader).
			WithCause(tenant.ErrMissingTenant)
	}
	tenantID, err := id.Parse(rawTenant)
	if err != nil {
		return tenant.Context{}, apperror.NewValidation("invalid tenant id").
			WithDetail("header", TenantHeader).
			WithDetail("value", rawTenant)
	}

	tc := tenant.New(tenantID, strings.TrimSpace(c.GetHeader(UserHeader)))
	if rawCompany := c.GetHeader(CompanyHeader); rawCompany != "" {
		companyID, err := id.Parse(rawCompany)
		if err != nil {
			return tenant.Context{}, apperror.NewValidation("invalid company id").
				WithDetail("header", CompanyHeader).
				WithDetail("value", rawCompany)
		}
		tc = tc.WithCompany(companyID)
	}

	if err := tc.Validate(); err != nil {
		return tenant.Context{}, err
	}
	return tc, nil
}

func registryError(tc tenant.Context, err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return apperror.NewUnauthorized("unknown tenant").WithDetail("tenant_id", tc.TenantID.String())
	case errors.Is(err, tenant.ErrCompanyNotInTenant):
		return apperror.NewUnauthorized("company is not part of the tenant").
			WithDetail("tenant_id", tc.TenantID.String()).
			WithDetail("company_id", tc.CompanyID.String())
	case errors.Is(err, tenant.ErrTenantNotActive):
		return apperror.NewUnauthorized("tenant is not active").WithDetail("tenant_id", tc.TenantID.String())
	default:
		return apperror.NewInternal(err).WithDetail("tenant_id", tc.TenantID.String())
	}
}
