package register_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/ledger"
	"medcore/internal/infrastructure/storage/postgres"
)

const insertLedgerRecord = `
	INSERT INTO ledger_records (
		id, tenant_id, company_id, document_id, document_kind, document_number,
		change_type, amount_delta, quantity_delta,
		old_data, old_data_zstd, new_data, new_data_zstd,
		reverses_id, caused_by_id, actor, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

var ledgerColumns = []string{
	"id", "tenant_id", "company_id", "document_id", "document_kind", "document_number",
	"change_type", "amount_delta", "quantity_delta",
	"old_data", "old_data_zstd", "new_data", "new_data_zstd",
	"reverses_id", "caused_by_id", "actor", "created_at",
}

// ledgerRow is a stored record with its snapshots still encoded.
type ledgerRow struct {
	ID          id.ID             `db:"id"`
	TenantID    id.ID             `db:"tenant_id"`
	CompanyID   id.ID             `db:"company_id"`
	DocumentID  id.ID             `db:"document_id"`
	Kind        string            `db:"document_kind"`
	Number      string            `db:"document_number"`
	ChangeType  ledger.ChangeType `db:"change_type"`
	Amount      types.Money       `db:"amount_delta"`
	Quantity    types.Quantity    `db:"quantity_delta"`
	OldData     []byte            `db:"old_data"`
	OldDataZstd []byte            `db:"old_data_zstd"`
	NewData     []byte            `db:"new_data"`
	NewDataZstd []byte            `db:"new_data_zstd"`
	Reverses    *id.ID            `db:"reverses_id"`
	CausedBy    *id.ID            `db:"caused_by_id"`
	Actor       string            `db:"actor"`
	CreatedAt   time.Time         `db:"created_at"`
}

// LedgerRepo implements ledger.Repository. Records are insert-only; the
// table has no UPDATE or DELETE path.
type LedgerRepo struct {
	tm    *postgres.TxManager
	exec  *postgres.BatchExecutor
	codec *postgres.SnapshotCodec
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(tm *postgres.TxManager, codec *postgres.SnapshotCodec) *LedgerRepo {
	return &LedgerRepo{tm: tm, exec: postgres.NewBatchExecutor(tm), codec: codec}
}

func (r *LedgerRepo) Append(ctx context.Context, records ...*ledger.Record) error {
	queries := make([]postgres.BatchQuery, 0, len(records))
	for _, rec := range records {
		oldData := r.codec.Encode(rec.OldData)
		newData := r.codec.Encode(rec.NewData)
		queries = append(queries, postgres.BatchQuery{
			SQL: insertLedgerRecord,
			Args: []any{
				rec.ID, rec.TenantID, rec.CompanyID, rec.DocumentID, rec.DocumentKind, rec.DocumentNumber,
				rec.ChangeType, rec.AmountDelta, rec.QuantityDelta,
				nullJSON(oldData.Plain), oldData.Compressed, nullJSON(newData.Plain), newData.Compressed,
				rec.Reverses, rec.CausedBy, rec.Actor, rec.CreatedAt,
			},
		})
	}
	if err := r.exec.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("append ledger records: %w", err)
	}
	return nil
}

func (r *LedgerRepo) ListByDocument(ctx context.Context, tc tenant.Context, documentID id.ID) ([]*ledger.Record, error) {
	sql, args, err := postgres.Builder().
		Select(ledgerColumns...).
		From("ledger_records").
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []ledgerRow
	if err := pgxscan.Select(ctx, r.tm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}

	out := make([]*ledger.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := r.decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *LedgerRepo) decode(row ledgerRow) (*ledger.Record, error) {
	oldData, err := r.codec.Decode(stored(row.OldData, row.OldDataZstd))
	if err != nil {
		return nil, fmt.Errorf("ledger record %s old data: %w", row.ID, err)
	}
	newData, err := r.codec.Decode(stored(row.NewData, row.NewDataZstd))
	if err != nil {
		return nil, fmt.Errorf("ledger record %s new data: %w", row.ID, err)
	}
	return &ledger.Record{
		ID:             row.ID,
		Scope:          tenant.Scope{TenantID: row.TenantID, CompanyID: row.CompanyID},
		DocumentID:     row.DocumentID,
		DocumentKind:   row.Kind,
		DocumentNumber: row.Number,
		ChangeType:     row.ChangeType,
		AmountDelta:    row.Amount,
		QuantityDelta:  row.Quantity,
		OldData:        oldData,
		NewData:        newData,
		Reverses:       row.Reverses,
		CausedBy:       row.CausedBy,
		Actor:          row.Actor,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func stored(plain, compressed []byte) postgres.StoredSnapshot {
	if len(compressed) > 0 {
		return postgres.StoredSnapshot{Compressed: compressed, Algo: postgres.CompressionZstd}
	}
	return postgres.StoredSnapshot{Plain: plain, Algo: postgres.CompressionNone}
}

// nullJSON keeps an absent snapshot NULL instead of an empty jsonb value.
func nullJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
