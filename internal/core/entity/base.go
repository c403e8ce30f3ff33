// Package entity provides the shared shape of persisted core entities.
package entity

import (
	"context"
	"time"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity contains the fields every tenant-owned row carries.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Scope stamps the owning tenant and company
	tenant.Scope

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewBaseEntity creates a BaseEntity owned by the caller in tc.
func NewBaseEntity(tc tenant.Context) BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Scope:     tc.Scope(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: tc.UserID,
	}
}

// Touch refreshes UpdatedAt. Version is advanced by the repository on a
// successful optimistic update.
func (b *BaseEntity) Touch() {
	b.UpdatedAt = time.Now().UTC()
}

// Owner returns the ownership stamp.
func (b *BaseEntity) Owner() tenant.Scope {
	return b.Scope
}
