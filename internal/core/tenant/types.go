package tenant

import (
	"time"

	"medcore/internal/core/id"
)

// Status represents tenant lifecycle state.
type Status string

const (
	// StatusActive - tenant can accept requests
	StatusActive Status = "active"

	// StatusSuspended - tenant is temporarily disabled (e.g., payment issues)
	StatusSuspended Status = "suspended"
)

// Tenant is a hospital or clinic group sharing one deployment.
type Tenant struct {
	ID          id.ID     `db:"id"`
	Slug        string    `db:"slug"`
	DisplayName string    `db:"display_name"`
	Status      Status    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

// IsActive returns true if tenant can accept requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Company is a legal entity (hospital, pharmacy, lab) inside a tenant.
type Company struct {
	ID       id.ID  `db:"id"`
	TenantID id.ID  `db:"tenant_id"`
	Name     string `db:"name"`
}
