package ledger

import (
	"context"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

// Repository appends and reads ledger records. There is no update or delete.
type Repository interface {
	Append(ctx context.Context, records ...*Record) error

	// ListByDocument returns the document's records oldest first.
	ListByDocument(ctx context.Context, tc tenant.Context, documentID id.ID) ([]*Record, error)
}
