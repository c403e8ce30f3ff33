package batch

import (
	"context"

	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

// Repository persists batches, their movements and reversal claims.
type Repository interface {
	// LockProduct serializes stock mutations of one product until the
	// surrounding transaction ends.
	LockProduct(ctx context.Context, tc tenant.Context, productID id.ID) error

	// ListForUpdate returns every batch of the product, row-locked.
	ListForUpdate(ctx context.Context, tc tenant.Context, productID id.ID) ([]*Batch, error)

	ListByProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*Batch, error)

	GetByID(ctx context.Context, tc tenant.Context, batchID id.ID) (*Batch, error)

	// GetByNumber returns NOT_FOUND when the product has no such batch.
	GetByNumber(ctx context.Context, tc tenant.Context, productID id.ID, number string) (*Batch, error)

	Create(ctx context.Context, b *Batch) error

	// Update saves quantity and prices when the stored version still equals
	// b.Version, then increments b.Version. A stale version yields
	// CONCURRENT_MODIFICATION.
	Update(ctx context.Context, b *Batch) error

	AppendMovements(ctx context.Context, moves []entity.StockMovement) error

	ListMovements(ctx context.Context, tc tenant.Context, productID id.ID) ([]entity.StockMovement, error)

	// ClaimReversal records reference as applied. A reference that was
	// already claimed yields ALREADY_REVERSED.
	ClaimReversal(ctx context.Context, tc tenant.Context, reference string) error
}
