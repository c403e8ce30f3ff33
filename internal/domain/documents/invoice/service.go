package invoice

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
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/notification"
	"medcore/internal/domain/posting"
	"medcore/pkg/logger"
)

// ProductLookup resolves a product visible to the caller.
type ProductLookup interface {
	Get(ctx context.Context, tc tenant.Context, productID id.ID) (*product.Product, error)
}

// Converter normalizes line quantities into product base units.
type Converter interface {
	ToBase(ctx context.Context, tc tenant.Context, p *product.Product, unit string, qty types.Quantity) (types.Quantity, error)
	Factor(ctx context.Context, tc tenant.Context, productID id.ID, from, to string) (types.Factor, error)
}

// CurrencyResolver supplies the default document currency.
type CurrencyResolver interface {
	DefaultCurrency(ctx context.Context, tc tenant.Context) (string, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Repo      Repository
	TxManager tx.Manager
	Products  ProductLookup
	Units     Converter
	Numerator numerator.Generator
	Settings  CurrencyResolver
	Engine    *posting.Engine
}

// Service owns the document lifecycle.
type Service struct {
	repo      Repository
	txm       tx.Manager
	products  ProductLookup
	units     Converter
	numerator numerator.Generator
	settings  CurrencyResolver
	engine    *posting.Engine
	hooks     *domain.HookRegistry[*Invoice]
}

// NewService creates a document service.
func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Repo,
		txm:       d.TxManager,
		products:  d.Products,
		units:     d.Units,
		numerator: d.Numerator,
		settings:  d.Settings,
		engine:    d.Engine,
		hooks:     domain.NewHookRegistry[*Invoice](),
	}
}

// Hooks exposes lifecycle hooks. They run after the transition committed.
func (s *Service) Hooks() *domain.HookRegistry[*Invoice] {
	return s.hooks
}

// CreateInput describes a new draft.
type CreateInput struct {
	Kind     Kind
	PartyRef string
	Currency string
	Date     time.Time
	Comment  string
	Lines    []LineInput
}

// Create stores a draft with at least one line and assigns its number.
func (s *Service) Create(ctx context.Context, tc tenant.Context, in CreateInput) (*Invoice, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if !in.Kind.IsValid() {
		return nil, apperror.NewValidation(fmt.Sprintf("unknown document kind %q", in.Kind))
	}
	if in.Kind == KindSalesReturn {
		return nil, apperror.NewValidation("returns are created from the original invoice")
	}
	if len(in.Lines) == 0 {
		return nil, apperror.NewEmptyDocument()
	}

	currency := in.Currency
	if strings.TrimSpace(currency) == "" {
		var err error
		if currency, err = s.settings.DefaultCurrency(ctx, tc); err != nil {
			return nil, err
		}
	}

	inv := NewInvoice(tc, in.Kind, in.PartyRef, currency, in.Date)
	inv.Comment = in.Comment
	for _, li := range in.Lines {
		l, err := s.buildLine(ctx, tc, inv, li)
		if err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	inv.Recalculate()
	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.nextNumber(ctx, tc, inv)
		if err != nil {
			return err
		}
		inv.Number = number
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document created",
		"document_id", inv.ID,
		"number", inv.Number,
		"kind", inv.Kind,
		"lines", len(inv.Lines),
	)
	if err := s.hooks.Run(ctx, domain.AfterCreate, inv); err != nil {
		logger.Warn(ctx, "after-create hook failed", "document_id", inv.ID, "error", err)
	}
	return inv, nil
}

func (s *Service) nextNumber(ctx context.Context, tc tenant.Context, inv *Invoice) (string, error) {
	cfg := numerator.DefaultConfig(inv.Kind.NumberPrefix())
	number, err := s.numerator.GetNextNumber(ctx, tc, cfg, nil, inv.Date)
	if err != nil {
		return "", fmt.Errorf("generate number: %w", err)
	}
	return number, nil
}

// buildLine fills catalog defaults for product lines.
func (s *Service) buildLine(ctx context.Context, tc tenant.Context, inv *Invoice, in LineInput) (*Line, error) {
	if in.ProductID != nil && !id.IsNil(*in.ProductID) {
		p, err := s.products.Get(ctx, tc, *in.ProductID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Unit) == "" {
			in.Unit = p.BaseUnit
		}
		if strings.TrimSpace(in.Description) == "" {
			in.Description = p.Name
		}
		if in.UnitPrice.IsZero() {
			switch inv.Kind {
			case KindSalesInvoice:
				in.UnitPrice = p.ListPrice
			case KindPurchaseReceipt:
				in.UnitPrice = p.DefaultCost
			}
		}
	} else {
		in.ProductID = nil
	}
	return inv.newLine(in), nil
}

// Get returns a document visible to tc.
func (s *Service) Get(ctx context.Context, tc tenant.Context, docID id.ID) (*Invoice, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tc, docID)
}

// List returns document headers visible to tc.
func (s *Service) List(ctx context.Context, tc tenant.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	if err := tc.Validate(); err != nil {
		return domain.ListResult[*Invoice]{}, err
	}
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, tc, filter)
}

// AddLine appends a line to a draft and recomputes totals.
func (s *Service) AddLine(ctx context.Context, tc tenant.Context, docID id.ID, in LineInput) (*Invoice, error) {
	return s.mutateDraft(ctx, tc, docID, func(ctx context.Context, inv *Invoice) error {
		if inv.Kind.IsCredit() {
			return apperror.NewValidation("return lines come from the original invoice")
		}
		l, err := s.buildLine(ctx, tc, inv, in)
		if err != nil {
			return err
		}
		inv.Lines = append(inv.Lines, l)
		return nil
	})
}

// UpdateLine replaces the content of one draft line.
func (s *Service) UpdateLine(ctx context.Context, tc tenant.Context, docID, lineID id.ID, in LineInput) (*Invoice, error) {
	return s.mutateDraft(ctx, tc, docID, func(ctx context.Context, inv *Invoice) error {
		for i, l := range inv.Lines {
			if l.ID != lineID {
				continue
			}
			if inv.Kind.IsCredit() {
				return apperror.NewValidation("edit return lines by recreating the return")
			}
			nl, err := s.buildLine(ctx, tc, inv, in)
			if err != nil {
				return err
			}
			nl.ID = l.ID
			inv.Lines[i] = nl
			return nil
		}
		return apperror.NewNotFound("document line", lineID)
	})
}

// RemoveLine deletes a draft line. The last line cannot be removed.
func (s *Service) RemoveLine(ctx context.Context, tc tenant.Context, docID, lineID id.ID) (*Invoice, error) {
	return s.mutateDraft(ctx, tc, docID, func(_ context.Context, inv *Invoice) error {
		for i, l := range inv.Lines {
			if l.ID == lineID {
				inv.Lines = append(inv.Lines[:i], inv.Lines[i+1:]...)
				return nil
			}
		}
		return apperror.NewNotFound("document line", lineID)
	})
}

func (s *Service) mutateDraft(ctx context.Context, tc tenant.Context, docID id.ID, fn func(ctx context.Context, inv *Invoice) error) (*Invoice, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	var out *Invoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, tc, docID)
		if err != nil {
			return err
		}
		if err := inv.CanModify(); err != nil {
			return err
		}
		if err := fn(ctx, inv); err != nil {
			return err
		}
		inv.Recalculate()
		if err := inv.Validate(ctx); err != nil {
			return err
		}
		inv.Touch()
		if err := s.repo.ReplaceLines(ctx, inv); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Void cancels a draft. Posted documents are reversed with a return instead.
func (s *Service) Void(ctx context.Context, tc tenant.Context, docID id.ID, reason string) (*Invoice, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	var out *Invoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, tc, docID)
		if err != nil {
			return err
		}
		if err := inv.TransitionTo(entity.StatusVoid); err != nil {
			return err
		}
		if reason != "" {
			inv.Comment = strings.TrimSpace(inv.Comment + "\n" + reason)
		}
		inv.Outstanding = types.Zero()

		_, err = s.engine.Execute(ctx, tc, posting.Request{
			Transition: posting.TransitionVoid,
			Document:   inv,
			Apply: func(ctx context.Context, _ *posting.Outcome) error {
				return s.repo.Update(ctx, inv)
			},
			Snapshot:  func() any { return inv.Snapshot(false) },
			EventType: notification.EventDocumentVoided,
		})
		if err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document voided", "document_id", out.ID, "number", out.Number)
	if err := s.hooks.Run(ctx, domain.AfterVoid, out); err != nil {
		logger.Warn(ctx, "after-void hook failed", "document_id", out.ID, "error", err)
	}
	return out, nil
}
