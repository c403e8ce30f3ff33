// Package register_repo provides PostgreSQL storage for the stock batch
// register and the document ledger.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/infrastructure/storage/postgres"
)

const (
	batchTable       = "stock_batches"
	batchNumberKey   = "uq_stock_batches_number"
	movementTable    = "stock_movements"
	receivedAtOrder  = "received_at ASC"
	movementOrdering = "created_at, id"
)

var movementColumns = []string{
	"id", "tenant_id", "company_id", "batch_id", "product_id", "kind", "quantity",
	"unit_cost", "document_id", "line_id", "reference", "created_by", "created_at",
}

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	tm       *postgres.TxManager
	t        *postgres.Table[batch.Batch]
	inserter *postgres.BatchInserter
}

var _ batch.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(tm *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		tm:       tm,
		t:        postgres.NewTable[batch.Batch](tm, batchTable, "batch", receivedAtOrder),
		inserter: postgres.NewBatchInserter(tm),
	}
}

// LockProduct takes a transaction-scoped advisory lock on (tenant, product).
// Concurrent allocations of the same product queue here instead of racing
// on row versions.
func (r *BatchRepo) LockProduct(ctx context.Context, tc tenant.Context, productID id.ID) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	if r.tm.GetTx(ctx) == nil {
		return fmt.Errorf("lock product %s: transaction required", productID)
	}
	_, err := r.tm.GetQuerier(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		"stock:"+tc.TenantID.String()+":"+productID.String())
	if err != nil {
		return fmt.Errorf("lock product %s: %w", productID, err)
	}
	return nil
}

func (r *BatchRepo) ListForUpdate(ctx context.Context, tc tenant.Context, productID id.ID) ([]*batch.Batch, error) {
	q := r.byProduct(tc, productID).Suffix("FOR UPDATE")
	return r.t.All(ctx, q)
}

func (r *BatchRepo) ListByProduct(ctx context.Context, tc tenant.Context, productID id.ID) ([]*batch.Batch, error) {
	return r.t.All(ctx, r.byProduct(tc, productID))
}

func (r *BatchRepo) byProduct(tc tenant.Context, productID id.ID) squirrel.SelectBuilder {
	return r.t.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("received_at", "id")
}

func (r *BatchRepo) GetByID(ctx context.Context, tc tenant.Context, batchID id.ID) (*batch.Batch, error) {
	b, err := r.t.Get(ctx, r.t.ByID(tc, batchID), batchID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Check(ctx, tc, b.Scope, "batch", batchID); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BatchRepo) GetByNumber(ctx context.Context, tc tenant.Context, productID id.ID, number string) (*batch.Batch, error) {
	q := r.t.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"product_id": productID, "batch_number": number})
	return r.t.Get(ctx, q, number)
}

func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	err := r.t.Insert(ctx, b)
	if postgres.IsUniqueViolation(err, batchNumberKey) {
		return apperror.NewConflict("batch number already exists for product").
			WithDetail("batchNumber", b.BatchNumber)
	}
	return err
}

func (r *BatchRepo) Update(ctx context.Context, b *batch.Batch) error {
	if err := r.t.UpdateVersioned(ctx, b, b.Scope, b.ID, b.Version); err != nil {
		return err
	}
	b.Version++
	return nil
}

// AppendMovements writes moves with COPY; it must run inside the posting transaction.
func (r *BatchRepo) AppendMovements(ctx context.Context, moves []entity.StockMovement) error {
	rows := make([][]any, 0, len(moves))
	for _, m := range moves {
		rows = append(rows, []any{
			postgres.UUID(m.ID), postgres.UUID(m.TenantID), postgres.UUID(m.CompanyID),
			postgres.UUID(m.BatchID), postgres.UUID(m.ProductID), string(m.Kind),
			postgres.Numeric(m.Quantity), postgres.Numeric(m.UnitCost),
			postgres.NullUUID(m.DocumentID), postgres.NullUUID(m.LineID),
			m.Reference, m.CreatedBy, m.CreatedAt,
		})
	}
	if _, err := r.inserter.CopyFromSlice(ctx, movementTable, movementColumns, rows); err != nil {
		return fmt.Errorf("append stock movements: %w", err)
	}
	return nil
}

func (r *BatchRepo) ListMovements(ctx context.Context, tc tenant.Context, productID id.ID) ([]entity.StockMovement, error) {
	sql, args, err := postgres.Builder().
		Select(movementColumns...).
		From(movementTable).
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy(movementOrdering).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []entity.StockMovement
	if err := pgxscan.Select(ctx, r.tm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return out, nil
}

// ClaimReversal relies on the primary key of stock_reversals; a second
// claim inserts nothing.
func (r *BatchRepo) ClaimReversal(ctx context.Context, tc tenant.Context, reference string) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	tag, err := r.tm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO stock_reversals (tenant_id, reference, claimed_by, claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, reference) DO NOTHING
	`, tc.TenantID, reference, tc.UserID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("claim reversal %s: %w", reference, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewAlreadyReversed(reference)
	}
	return nil
}
