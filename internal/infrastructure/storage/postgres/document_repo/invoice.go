// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/infrastructure/storage/postgres"
)

const (
	documentTable      = "documents"
	documentLineTable  = "document_lines"
	allocationTable    = "line_allocations"
	documentNumberKey  = "uq_documents_tenant_number"
	documentListOrder  = "created_at DESC"
	documentLinesOrder = "line_no ASC"
)

// InvoiceRepo implements invoice.Repository over documents, document_lines
// and line_allocations.
type InvoiceRepo struct {
	docs   *postgres.Table[invoice.Invoice]
	lines  *postgres.Table[invoice.Line]
	allocs *postgres.Table[invoice.LineAllocation]
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new document repository.
func NewInvoiceRepo(tm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		docs:   postgres.NewTable[invoice.Invoice](tm, documentTable, "document", documentListOrder),
		lines:  postgres.NewTable[invoice.Line](tm, documentLineTable, "document line", documentLinesOrder),
		allocs: postgres.NewTable[invoice.LineAllocation](tm, allocationTable, "line allocation", "id ASC"),
	}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	stampLines(inv)
	if err := r.docs.Insert(ctx, inv); err != nil {
		if postgres.IsUniqueViolation(err, documentNumberKey) {
			return apperror.NewConflict("document number already exists").WithDetail("number", inv.Number)
		}
		return err
	}
	return r.lines.InsertAll(ctx, inv.Lines)
}

func (r *InvoiceRepo) GetByID(ctx context.Context, tc tenant.Context, docID id.ID) (*invoice.Invoice, error) {
	return r.get(ctx, tc, docID, r.docs.ByID(tc, docID))
}

func (r *InvoiceRepo) GetForUpdate(ctx context.Context, tc tenant.Context, docID id.ID) (*invoice.Invoice, error) {
	return r.get(ctx, tc, docID, r.docs.ByID(tc, docID).Suffix("FOR UPDATE"))
}

func (r *InvoiceRepo) get(ctx context.Context, tc tenant.Context, docID id.ID, q squirrel.SelectBuilder) (*invoice.Invoice, error) {
	inv, err := r.docs.Get(ctx, q, docID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Check(ctx, tc, inv.Scope, "document", docID); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, tc, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *invoice.Invoice) error {
	if err := r.docs.UpdateVersioned(ctx, inv, inv.Scope, inv.ID, inv.Version); err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (r *InvoiceRepo) ReplaceLines(ctx context.Context, inv *invoice.Invoice) error {
	sql, args, err := postgres.Builder().
		Delete(documentLineTable).
		Where(squirrel.Eq{"document_id": inv.ID, "tenant_id": inv.TenantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.lines.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete document lines: %w", err)
	}
	stampLines(inv)
	return r.lines.InsertAll(ctx, inv.Lines)
}

func (r *InvoiceRepo) SaveAllocations(ctx context.Context, allocs []invoice.LineAllocation) error {
	items := make([]*invoice.LineAllocation, len(allocs))
	for i := range allocs {
		items[i] = &allocs[i]
	}
	return r.allocs.InsertAll(ctx, items)
}

func (r *InvoiceRepo) ListReturns(ctx context.Context, tc tenant.Context, originalID id.ID) ([]*invoice.Invoice, error) {
	q := r.docs.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"original_id": originalID}).
		OrderBy("created_at", "id")

	returns, err := r.docs.All(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, tc, returns...); err != nil {
		return nil, err
	}
	return returns, nil
}

func (r *InvoiceRepo) List(ctx context.Context, tc tenant.Context, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	q := r.docs.Select().Where(postgres.ScopeFilter(tc, ""))
	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.PartyRef != "" {
		q = q.Where(squirrel.Eq{"party_ref": filter.PartyRef})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	return r.docs.Page(ctx, q, filter.ListFilter)
}

// stampLines gives every line the owner of its document.
func stampLines(inv *invoice.Invoice) {
	for _, l := range inv.Lines {
		l.Scope = inv.Scope
	}
}

// attachLines loads lines and allocations of docs in two queries.
func (r *InvoiceRepo) attachLines(ctx context.Context, tc tenant.Context, docs ...*invoice.Invoice) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]id.ID, len(docs))
	byID := make(map[id.ID]*invoice.Invoice, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		byID[d.ID] = d
		d.Lines = []*invoice.Line{}
	}

	lines, err := r.lines.All(ctx, r.lines.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"document_id": ids}).
		OrderBy("document_id", "line_no"))
	if err != nil {
		return err
	}
	allocs, err := r.allocs.All(ctx, r.allocs.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"document_id": ids}).
		OrderBy("id"))
	if err != nil {
		return err
	}

	byLine := make(map[id.ID][]invoice.LineAllocation, len(allocs))
	for _, a := range allocs {
		byLine[a.LineID] = append(byLine[a.LineID], *a)
	}
	for _, l := range lines {
		l.Allocations = byLine[l.ID]
		doc := byID[l.DocumentID]
		doc.Lines = append(doc.Lines, l)
	}
	return nil
}
