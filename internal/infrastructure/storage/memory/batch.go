package memory

import (
	"cmp"
	"context"
	"slices"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/registers/batch"
)

// BatchRepo implements batch.Repository. Product locks are implied by the
// store mutex held for the whole transaction.
type BatchRepo struct {
	s *Store
}

var _ batch.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) LockProduct(ctx context.Context, tc tenant.Context, productID id.ID) error {
	return tc.Validate()
}

func (r *BatchRepo) ListForUpdate(ctx context.Context, tc tenant.Context, productID id.ID) ([]*batch.Batch, error) {
	return r.ListByProduct(ctx, tc, productID)
}

func (r *BatchRepo) ListByProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*batch.Batch, error) {
	var out []*batch.Batch
	_ = r.s.do(ctx, func(st *state) error {
		for _, b := range st.batches {
			if b.ProductID == productID && tc.Owns(b.Scope) {
				out = append(out, &b)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *batch.Batch) int {
		return cmp.Or(a.ReceivedAt.Compare(b.ReceivedAt), compareID(a.ID, b.ID))
	})
	return out, nil
}

func (r *BatchRepo) GetByID(ctx context.Context, tc tenant.Context, batchID id.ID) (*batch.Batch, error) {
	var out *batch.Batch
	err := r.s.do(ctx, func(st *state) error {
		b, ok := st.batches[batchID]
		if !ok {
			return apperror.NewNotFound("batch", batchID)
		}
		if err := tenant.Check(ctx, tc, b.Scope, "batch", batchID); err != nil {
			return err
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *BatchRepo) GetByNumber(ctx context.Context, tc tenant.Context, productID id.ID, number string) (*batch.Batch, error) {
	var out *batch.Batch
	err := r.s.do(ctx, func(st *state) error {
		for _, b := range st.batches {
			if b.ProductID == productID && b.BatchNumber == number && tc.Owns(b.Scope) {
				out = &b
				return nil
			}
		}
		return apperror.NewNotFound("batch", number)
	})
	return out, err
}

func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	return r.s.do(ctx, func(st *state) error {
		for _, other := range st.batches {
			if other.TenantID == b.TenantID && other.ProductID == b.ProductID && other.BatchNumber == b.BatchNumber {
				return apperror.NewConflict("batch number already exists for product").
					WithDetail("batchNumber", b.BatchNumber)
			}
		}
		st.batches[b.ID] = *b
		return nil
	})
}

func (r *BatchRepo) Update(ctx context.Context, b *batch.Batch) error {
	return r.s.do(ctx, func(st *state) error {
		stored, ok := st.batches[b.ID]
		if !ok || stored.TenantID != b.TenantID {
			return apperror.NewNotFound("batch", b.ID)
		}
		if stored.Version != b.Version {
			return apperror.NewConcurrentModification("batch", b.ID)
		}
		b.Version++
		st.batches[b.ID] = *b
		return nil
	})
}

func (r *BatchRepo) AppendMovements(ctx context.Context, moves []entity.StockMovement) error {
	return r.s.do(ctx, func(st *state) error {
		st.movements = append(st.movements, moves...)
		return nil
	})
}

func (r *BatchRepo) ListMovements(ctx context.Context, tc tenant.Context, productID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	_ = r.s.do(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.ProductID == productID && tc.Owns(m.Scope) {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, nil
}

func (r *BatchRepo) ClaimReversal(ctx context.Context, tc tenant.Context, reference string) error {
	key := tc.TenantID.String() + "/" + reference
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.reversals[key]; ok {
			return apperror.NewAlreadyReversed(reference)
		}
		st.reversals[key] = struct{}{}
		return nil
	})
}
