package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/documents/payment"
)

// DocumentRepo implements invoice.Repository.
type DocumentRepo struct {
	s *Store
}

var _ invoice.Repository = (*DocumentRepo)(nil)

func (r *DocumentRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		for _, other := range st.invoices {
			if other.Scope == inv.Scope && other.Number != "" && other.Number == inv.Number {
				return apperror.NewConflict("document number already exists").WithDetail("number", inv.Number)
			}
		}
		st.invoices[inv.ID] = header(inv)
		st.lines[inv.ID] = storedLines(inv)
		return nil
	})
}

func (r *DocumentRepo) GetByID(ctx context.Context, tc tenant.Context, docID id.ID) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := r.s.do(ctx, func(st *state) error {
		h, ok := st.invoices[docID]
		if !ok {
			return apperror.NewNotFound("document", docID)
		}
		if err := tenant.Check(ctx, tc, h.Scope, "document", docID); err != nil {
			return err
		}
		out = st.assemble(h)
		return nil
	})
	return out, err
}

func (r *DocumentRepo) GetForUpdate(ctx context.Context, tc tenant.Context, docID id.ID) (*invoice.Invoice, error) {
	return r.GetByID(ctx, tc, docID)
}

func (r *DocumentRepo) Update(ctx context.Context, inv *invoice.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		stored, ok := st.invoices[inv.ID]
		if !ok || stored.TenantID != inv.TenantID {
			return apperror.NewNotFound("document", inv.ID)
		}
		if stored.Version != inv.Version {
			return apperror.NewConcurrentModification("document", inv.ID)
		}
		inv.Version++
		st.invoices[inv.ID] = header(inv)
		return nil
	})
}

func (r *DocumentRepo) ReplaceLines(ctx context.Context, inv *invoice.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.invoices[inv.ID]; !ok {
			return apperror.NewNotFound("document", inv.ID)
		}
		st.lines[inv.ID] = storedLines(inv)
		return nil
	})
}

func (r *DocumentRepo) SaveAllocations(ctx context.Context, allocs []invoice.LineAllocation) error {
	return r.s.do(ctx, func(st *state) error {
		for _, a := range allocs {
			st.allocations[a.DocumentID] = append(st.allocations[a.DocumentID], a)
		}
		return nil
	})
}

func (r *DocumentRepo) ListReturns(ctx context.Context, tc tenant.Context, originalID id.ID) ([]*invoice.Invoice, error) {
	var out []*invoice.Invoice
	_ = r.s.do(ctx, func(st *state) error {
		for _, h := range st.invoices {
			if h.OriginalID != nil && *h.OriginalID == originalID && tc.Owns(h.Scope) {
				out = append(out, st.assemble(h))
			}
		}
		return nil
	})
	slices.SortFunc(out, byCreated)
	return out, nil
}

func (r *DocumentRepo) List(ctx context.Context, tc tenant.Context, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	var items []*invoice.Invoice
	_ = r.s.do(ctx, func(st *state) error {
		search := strings.ToLower(filter.Search)
		for _, h := range st.invoices {
			switch {
			case !tc.Owns(h.Scope):
				continue
			case filter.Kind != "" && h.Kind != filter.Kind:
				continue
			case filter.Status != "" && string(h.Status) != filter.Status:
				continue
			case filter.PartyRef != "" && h.PartyRef != filter.PartyRef:
				continue
			case search != "" && !strings.Contains(strings.ToLower(h.Number), search):
				continue
			}
			items = append(items, &h)
		}
		return nil
	})
	slices.SortFunc(items, func(a, b *invoice.Invoice) int { return byCreated(b, a) })
	return domain.Page(items, filter.ListFilter), nil
}

func byCreated(a, b *invoice.Invoice) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), compareID(a.ID, b.ID))
}

func header(inv *invoice.Invoice) invoice.Invoice {
	h := *inv
	h.Lines = nil
	return h
}

func storedLines(inv *invoice.Invoice) []invoice.Line {
	out := make([]invoice.Line, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		c := *l
		c.Allocations = nil
		out = append(out, c)
	}
	return out
}

// assemble builds a detached invoice with lines and allocations.
func (st *state) assemble(h invoice.Invoice) *invoice.Invoice {
	inv := h
	allocs := st.allocations[h.ID]
	for _, l := range st.lines[h.ID] {
		line := l
		for _, a := range allocs {
			if a.LineID == l.ID {
				line.Allocations = append(line.Allocations, a)
			}
		}
		inv.Lines = append(inv.Lines, &line)
	}
	return &inv
}

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	s *Store
}

var _ payment.Repository = (*PaymentRepo)(nil)

func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.payments[p.ID]; ok {
			return apperror.NewConflict("payment already exists")
		}
		stored := *p
		stored.Applications = slices.Clone(p.Applications)
		st.payments[p.ID] = stored
		st.applications = append(st.applications, p.Applications...)
		return nil
	})
}

func (r *PaymentRepo) GetByID(ctx context.Context, tc tenant.Context, paymentID id.ID) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.s.do(ctx, func(st *state) error {
		p, ok := st.payments[paymentID]
		if !ok {
			return apperror.NewNotFound("payment", paymentID)
		}
		if err := tenant.Check(ctx, tc, p.Scope, "payment", paymentID); err != nil {
			return err
		}
		p.Applications = slices.Clone(p.Applications)
		out = &p
		return nil
	})
	return out, err
}

func (r *PaymentRepo) ListByDocument(ctx context.Context, tc tenant.Context, documentID id.ID) ([]payment.Application, error) {
	var out []payment.Application
	_ = r.s.do(ctx, func(st *state) error {
		for _, a := range st.applications {
			if a.DocumentID == documentID && tc.Owns(a.Scope) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, nil
}

func (r *PaymentRepo) List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*payment.Payment], error) {
	var items []*payment.Payment
	_ = r.s.do(ctx, func(st *state) error {
		for _, p := range st.payments {
			if !tc.Owns(p.Scope) {
				continue
			}
			if filter.Status != "" && string(p.Status) != filter.Status {
				continue
			}
			p.Applications = slices.Clone(p.Applications)
			items = append(items, &p)
		}
		return nil
	})
	slices.SortFunc(items, func(a, b *payment.Payment) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), compareID(b.ID, a.ID))
	})
	return domain.Page(items, filter), nil
}
