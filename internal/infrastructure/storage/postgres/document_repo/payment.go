package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
	"medcore/internal/domain/documents/payment"
	"medcore/internal/infrastructure/storage/postgres"
)

const (
	paymentTable      = "payments"
	applicationTable  = "payment_applications"
	paymentNumberKey  = "uq_payments_tenant_number"
	paymentListOrder  = "created_at DESC"
	applicationsOrder = "created_at ASC"
)

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	payments *postgres.Table[payment.Payment]
	apps     *postgres.Table[payment.Application]
}

var _ payment.Repository = (*PaymentRepo)(nil)

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(tm *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		payments: postgres.NewTable[payment.Payment](tm, paymentTable, "payment", paymentListOrder),
		apps:     postgres.NewTable[payment.Application](tm, applicationTable, "payment application", applicationsOrder),
	}
}

func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	if err := r.payments.Insert(ctx, p); err != nil {
		if postgres.IsUniqueViolation(err, paymentNumberKey) {
			return apperror.NewConflict("payment number already exists").WithDetail("number", p.Number)
		}
		return err
	}
	apps := make([]*payment.Application, len(p.Applications))
	for i := range p.Applications {
		apps[i] = &p.Applications[i]
	}
	return r.apps.InsertAll(ctx, apps)
}

func (r *PaymentRepo) GetByID(ctx context.Context, tc tenant.Context, paymentID id.ID) (*payment.Payment, error) {
	p, err := r.payments.Get(ctx, r.payments.ByID(tc, paymentID), paymentID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Check(ctx, tc, p.Scope, "payment", paymentID); err != nil {
		return nil, err
	}
	if err := r.attachApplications(ctx, tc, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepo) ListByDocument(ctx context.Context, tc tenant.Context, documentID id.ID) ([]payment.Application, error) {
	apps, err := r.apps.All(ctx, r.apps.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, err
	}
	out := make([]payment.Application, len(apps))
	for i, a := range apps {
		out[i] = *a
	}
	return out, nil
}

func (r *PaymentRepo) List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*payment.Payment], error) {
	q := r.payments.Select().Where(postgres.ScopeFilter(tc, ""))
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	result, err := r.payments.Page(ctx, q, filter)
	if err != nil {
		return result, err
	}
	if err := r.attachApplications(ctx, tc, result.Items...); err != nil {
		return result, err
	}
	return result, nil
}

func (r *PaymentRepo) attachApplications(ctx context.Context, tc tenant.Context, payments ...*payment.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	ids := make([]id.ID, len(payments))
	byID := make(map[id.ID]*payment.Payment, len(payments))
	for i, p := range payments {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Applications = []payment.Application{}
	}

	apps, err := r.apps.All(ctx, r.apps.Select().
		Where(postgres.ScopeFilter(tc, "")).
		Where(squirrel.Eq{"payment_id": ids}).
		OrderBy("created_at", "id"))
	if err != nil {
		return err
	}
	for _, a := range apps {
		p := byID[a.PaymentID]
		p.Applications = append(p.Applications, *a)
	}
	return nil
}
