package tenant

import "errors"

// Registry lookups.
var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantNotActive    = errors.New("tenant is not active")
	ErrCompanyNotInTenant = errors.New("company does not belong to tenant")
)

// Context validation.
var (
	ErrMissingTenant = errors.New("tenant context has no tenant id")
	ErrMissingUser   = errors.New("tenant context has no user id")
)
