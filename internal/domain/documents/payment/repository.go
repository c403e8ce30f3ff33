package payment

import (
	"context"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
)

// Repository persists payments and their applications.
type Repository interface {
	// Create inserts the payment with its applications.
	Create(ctx context.Context, p *Payment) error

	GetByID(ctx context.Context, tc tenant.Context, paymentID id.ID) (*Payment, error)

	// ListByDocument returns applications made against a document.
	ListByDocument(ctx context.Context, tc tenant.Context, documentID id.ID) ([]Application, error)

	List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*Payment], error)
}
