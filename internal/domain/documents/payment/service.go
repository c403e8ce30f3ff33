package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/numerator"
	"medcore/internal/core/tenant"
	"medcore/internal/core/tx"
	"medcore/internal/core/types"
	"medcore/internal/domain"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/notification"
	"medcore/internal/domain/posting"
	"medcore/pkg/logger"
)

// Service records payments.
type Service struct {
	repo      Repository
	documents invoice.Repository
	txm       tx.Manager
	numerator numerator.Generator
	engine    *posting.Engine
	poster    *ledger.Poster
}

// NewService creates a payment service.
func NewService(repo Repository, documents invoice.Repository, txm tx.Manager, gen numerator.Generator,
	engine *posting.Engine, poster *ledger.Poster) *Service {
	return &Service{
		repo:      repo,
		documents: documents,
		txm:       txm,
		numerator: gen,
		engine:    engine,
		poster:    poster,
	}
}

// ApplicationInput applies Amount of the payment to a document.
type ApplicationInput struct {
	DocumentID id.ID
	Amount     types.Money
}

// RecordInput describes a payment.
type RecordInput struct {
	Direction    Direction
	PartyRef     string
	Amount       types.Money
	Method       string
	Reference    string
	Currency     string
	Date         time.Time
	Applications []ApplicationInput
}

// Record creates and posts a payment and applies it to the listed documents
// in one transaction. Over-application is allowed and flagged.
func (s *Service) Record(ctx context.Context, tc tenant.Context, in RecordInput) (*Payment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	p := &Payment{
		Document: entity.Document{
			BaseEntity: entity.NewBaseEntity(tc),
			Date:       date,
			Status:     entity.StatusDraft,
		},
		CurrencyAware: entity.CurrencyAware{Currency: strings.ToUpper(strings.TrimSpace(in.Currency))},
		Direction:     in.Direction,
		PartyRef:      strings.TrimSpace(in.PartyRef),
		Amount:        types.RoundMoney(in.Amount),
		Method:        strings.TrimSpace(in.Method),
		Reference:     strings.TrimSpace(in.Reference),
	}
	for _, a := range in.Applications {
		p.Applications = append(p.Applications, Application{
			ID:         id.New(),
			Scope:      p.Scope,
			PaymentID:  p.ID,
			DocumentID: a.DocumentID,
			Amount:     types.RoundMoney(a.Amount),
			CreatedAt:  p.CreatedAt,
		})
	}
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.GetNextNumber(ctx, tc, numerator.DefaultConfig(numberPrefix(p.Direction)), nil, p.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		p.Number = number
		if err := p.TransitionTo(entity.StatusPosted); err != nil {
			return err
		}
		p.Posted = true

		_, err = s.engine.Execute(ctx, tc, posting.Request{
			Transition: posting.TransitionPayment,
			Document:   p,
			Apply: func(ctx context.Context, _ *posting.Outcome) error {
				return s.apply(ctx, tc, p)
			},
			Snapshot:  func() any { return p },
			EventType: notification.EventPaymentRecorded,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded",
		"payment_id", p.ID,
		"number", p.Number,
		"amount", p.Amount.String(),
		"unapplied", p.Unapplied.String(),
		"overpaid", p.Overpaid(),
	)
	return p, nil
}

// apply settles each document and stores the payment.
func (s *Service) apply(ctx context.Context, tc tenant.Context, p *Payment) error {
	applied := types.Zero()
	for i := range p.Applications {
		a := &p.Applications[i]

		doc, err := s.documents.GetForUpdate(ctx, tc, a.DocumentID)
		if err != nil {
			return err
		}
		if !p.Direction.Accepts(doc.Kind) {
			return apperror.NewValidation(fmt.Sprintf("%s payment cannot settle a %s", p.Direction, doc.Kind)).
				WithDetail("document_id", doc.ID)
		}
		if doc.Currency != p.Currency {
			return apperror.NewValidation("payment currency differs from document currency").
				WithDetail("document_id", doc.ID)
		}

		before := doc.Snapshot(false)
		a.OutstandingBefore = doc.Outstanding
		overpaid, err := doc.ApplyPayment(a.Amount)
		if err != nil {
			return err
		}
		a.OutstandingAfter = doc.Outstanding
		a.Overpaid = overpaid

		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		if _, err := s.poster.PaymentApplied(ctx, tc, p.LedgerRef(), doc.LedgerRef(), before, doc.Snapshot(false)); err != nil {
			return err
		}
		if overpaid {
			logger.Warn(ctx, "payment over-applied",
				"payment_id", p.ID,
				"document_id", doc.ID,
				"outstanding", doc.Outstanding.String(),
			)
		}
		applied = applied.Add(a.Amount)
	}
	p.Unapplied = p.Amount.Sub(applied)
	return s.repo.Create(ctx, p)
}

// Get returns a payment visible to tc.
func (s *Service) Get(ctx context.Context, tc tenant.Context, paymentID id.ID) (*Payment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tc, paymentID)
}

// ForDocument lists applications made against a document.
func (s *Service) ForDocument(ctx context.Context, tc tenant.Context, documentID id.ID) ([]Application, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.documents.GetByID(ctx, tc, documentID); err != nil {
		return nil, err
	}
	return s.repo.ListByDocument(ctx, tc, documentID)
}

// List returns payments visible to tc.
func (s *Service) List(ctx context.Context, tc tenant.Context, filter domain.ListFilter) (domain.ListResult[*Payment], error) {
	if err := tc.Validate(); err != nil {
		return domain.ListResult[*Payment]{}, err
	}
	return s.repo.List(ctx, tc, filter.Normalize())
}

func numberPrefix(d Direction) string {
	if d == DirectionOutbound {
		return "PAY"
	}
	return "RCT"
}
