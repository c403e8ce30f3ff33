package invoice

import (
	"context"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
)

// ListFilter narrows document lists.
type ListFilter struct {
	domain.ListFilter
	Kind     Kind
	PartyRef string
}

// Repository persists documents, their lines and line allocations.
type Repository interface {
	// Create inserts the header and its lines.
	Create(ctx context.Context, inv *Invoice) error

	// GetByID loads header, lines and allocations.
	GetByID(ctx context.Context, tc tenant.Context, docID id.ID) (*Invoice, error)

	// GetForUpdate is GetByID holding a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, tc tenant.Context, docID id.ID) (*Invoice, error)

	// Update saves the header when the stored version equals inv.Version,
	// then increments inv.Version.
	Update(ctx context.Context, inv *Invoice) error

	// ReplaceLines stores inv.Lines as the complete line set.
	ReplaceLines(ctx context.Context, inv *Invoice) error

	SaveAllocations(ctx context.Context, allocs []LineAllocation) error

	// ListReturns loads every return referencing originalID with lines and allocations.
	ListReturns(ctx context.Context, tc tenant.Context, originalID id.ID) ([]*Invoice, error)

	// List returns headers only.
	List(ctx context.Context, tc tenant.Context, filter ListFilter) (domain.ListResult[*Invoice], error)
}
