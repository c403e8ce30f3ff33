// Package tenant implements the tenant scoping guard.
//
// Every core operation receives an explicit Context naming the tenant, the
// company inside it, and the acting user. Repositories filter every read and
// write by that scope; Check turns a foreign-scope hit into a not-found.
package tenant

import (
	"context"

	"medcore/internal/core/apperror"
	appctx "medcore/internal/core/context"
	"medcore/internal/core/id"
)

// Context is the resolved caller scope threaded through every core call.
type Context struct {
	TenantID  id.ID
	CompanyID id.ID // zero value means tenant-wide
	UserID    string
}

// New builds a Context for tenant-wide access.
func New(tenantID id.ID, userID string) Context {
	return Context{TenantID: tenantID, UserID: userID}
}

// WithCompany returns a copy of c scoped to one company.
func (c Context) WithCompany(companyID id.ID) Context {
	c.CompanyID = companyID
	return c
}

// Validate checks that the context can scope a query.
func (c Context) Validate() error {
	if id.IsNil(c.TenantID) {
		return apperror.NewUnauthorized("tenant context is required").WithCause(ErrMissingTenant)
	}
	if c.UserID == "" {
		return apperror.NewUnauthorized("acting user is required").WithCause(ErrMissingUser)
	}
	return nil
}

// HasCompany reports whether the caller is restricted to one company.
func (c Context) HasCompany() bool {
	return !id.IsNil(c.CompanyID)
}

// Owns reports whether a row scoped to (tenantID, companyID) is visible to c.
// Rows without a company are tenant-wide masters and visible to every company.
func (c Context) Owns(s Scope) bool {
	if s.TenantID != c.TenantID {
		return false
	}
	if !c.HasCompany() || id.IsNil(s.CompanyID) {
		return true
	}
	return s.CompanyID == c.CompanyID
}

// Scope returns the ownership stamp for rows created by c.
func (c Context) Scope() Scope {
	return Scope{TenantID: c.TenantID, CompanyID: c.CompanyID}
}

// Attach stores c on ctx for log enrichment and HTTP plumbing.
func Attach(ctx context.Context, c Context) context.Context {
	ctx = context.WithValue(ctx, tenantCtxKey{}, c)
	return appctx.WithCaller(ctx, &appctx.Caller{
		TenantID:  c.TenantID.String(),
		CompanyID: c.CompanyID.String(),
		UserID:    c.UserID,
	})
}

// FromContext returns the Context attached by Attach.
func FromContext(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(tenantCtxKey{}).(Context)
	return c, ok
}

type tenantCtxKey struct{}
