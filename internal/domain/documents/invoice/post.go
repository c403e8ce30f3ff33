package invoice

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/notification"
	"medcore/internal/domain/posting"
	"medcore/internal/domain/pricing"
	"medcore/internal/domain/registers/batch"
	"medcore/pkg/logger"
)

// PostResult is a posted document plus soft pricing warnings raised by
// receipt lines.
type PostResult struct {
	Invoice  *Invoice `json:"invoice"`
	Warnings []string `json:"warnings,omitempty"`
}

// Post freezes a draft and commits its stock effects and ledger record as
// one unit. On any failure the document stays draft and nothing is written.
func (s *Service) Post(ctx context.Context, tc tenant.Context, docID id.ID) (*PostResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	var result *PostResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, tc, docID)
		if err != nil {
			return err
		}
		if inv.IsPosted() {
			return apperror.NewAlreadyPosted(inv.ID.String())
		}
		if inv.Status != entity.StatusDraft {
			return apperror.NewInvalidTransition(string(inv.Status), string(entity.StatusPosted))
		}

		inv.Recalculate()
		if err := inv.Validate(ctx); err != nil {
			return err
		}
		if err := inv.ValidateTotal(); err != nil {
			return err
		}

		var basis *returnBasis
		if inv.Kind == KindSalesReturn {
			if basis, err = s.loadReturnBasis(ctx, tc, inv); err != nil {
				return err
			}
		}

		effects, err := s.plan(ctx, tc, inv, basis)
		if err != nil {
			return err
		}
		if err := inv.TransitionTo(entity.StatusPosted); err != nil {
			return err
		}

		req := posting.Request{
			Transition: posting.TransitionPost,
			Effects:    effects,
			Document:   inv,
			Apply: func(ctx context.Context, out *posting.Outcome) error {
				return s.persistPosted(ctx, inv, effects, out)
			},
			Snapshot:  func() any { return inv.Snapshot(true) },
			EventType: notification.EventDocumentPosted,
		}
		if basis != nil {
			req.Transition = posting.TransitionReturn
			req.Original = basis.original
		}

		out, err := s.engine.Execute(ctx, tc, req)
		if err != nil {
			return err
		}
		result = &PostResult{Invoice: inv, Warnings: out.Warnings}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv := result.Invoice
	logger.Info(ctx, "document posted",
		"document_id", inv.ID,
		"number", inv.Number,
		"kind", inv.Kind,
		"total", inv.Total.String(),
	)
	if err := s.hooks.Run(ctx, domain.AfterPost, inv); err != nil {
		logger.Warn(ctx, "after-post hook failed", "document_id", inv.ID, "error", err)
	}
	return result, nil
}

// plan normalizes product lines to base units and derives stock effects.
func (s *Service) plan(ctx context.Context, tc tenant.Context, inv *Invoice, basis *returnBasis) (posting.Effects, error) {
	var eff posting.Effects
	var reasons []string

	for _, l := range inv.Lines {
		if !l.HasProduct() {
			continue
		}
		p, err := s.products.Get(ctx, tc, *l.ProductID)
		if err != nil {
			return eff, err
		}
		if !p.Stocked {
			continue
		}

		base, err := s.units.ToBase(ctx, tc, p, l.Unit, l.Quantity.Abs())
		if err != nil {
			return eff, err
		}
		base = types.RoundQuantity(base)
		if inv.Kind.IsCredit() {
			l.BaseQuantity = base.Neg()
		} else {
			l.BaseQuantity = base
		}

		docID, lineID := id.Ptr(inv.ID), id.Ptr(l.ID)
		switch inv.Kind {
		case KindSalesInvoice:
			eff.Allocate = append(eff.Allocate, batch.AllocateRequest{
				ProductID:  p.ID,
				Quantity:   base,
				AsOf:       inv.Date,
				DocumentID: docID,
				LineID:     lineID,
			})

		case KindPurchaseReceipt:
			if l.BatchNumber == "" {
				reasons = append(reasons, lineReason(l, "batch number is required for stocked products"))
				continue
			}
			in, err := s.restockInput(ctx, tc, p, l)
			if err != nil {
				return eff, err
			}
			in.DocumentID, in.LineID = docID, lineID
			eff.Restock = append(eff.Restock, in)

		case KindSalesReturn:
			reversals, err := basis.reversalsFor(inv, l, base)
			if err != nil {
				return eff, err
			}
			eff.Reverse = append(eff.Reverse, reversals...)
		}
	}

	if len(reasons) > 0 {
		return eff, apperror.NewValidationFailed("document cannot be posted", reasons)
	}
	return eff, nil
}

// restockInput converts pack prices on a receipt line into base-unit prices.
func (s *Service) restockInput(ctx context.Context, tc tenant.Context, p *product.Product, l *Line) (batch.RestockInput, error) {
	factor := types.NewQuantity(1)
	if l.Unit != p.BaseUnit {
		f, err := s.units.Factor(ctx, tc, p.ID, l.Unit, p.BaseUnit)
		if err != nil {
			return batch.RestockInput{}, err
		}
		factor = f
	}

	packSale := p.ListPrice.Mul(factor)
	if l.SalePrice.Valid {
		packSale = l.SalePrice.Decimal
	}
	unit := pricing.UnitPricing(pricing.PackInput{
		PackCost:      l.UnitPrice,
		PackSalePrice: packSale,
		Factor:        factor,
		MRP:           l.MRP,
	})

	in := batch.RestockInput{
		ProductID:   p.ID,
		BatchNumber: l.BatchNumber,
		Quantity:    l.BaseQuantity,
		UnitCost:    unit.UnitCost,
		SalePrice:   unit.UnitSalePrice,
		ExpiryDate:  l.ExpiryDate,
	}
	if l.MRP.Valid {
		in.MRP = decimal.NewNullDecimal(unit.UnitMRP)
	}
	return in, nil
}

// persistPosted stores base quantities, allocations and the new header.
func (s *Service) persistPosted(ctx context.Context, inv *Invoice, eff posting.Effects, out *posting.Outcome) error {
	var allocs []LineAllocation
	for _, l := range inv.Lines {
		l.Allocations = nil
		if res, ok := out.Allocations[l.ID]; ok {
			for _, a := range res.Allocations {
				l.Allocations = append(l.Allocations, newAllocation(inv, l, a.BatchID, a.Quantity, a.UnitCost))
			}
		}
		if res, ok := out.Restocked[l.ID]; ok {
			l.Allocations = append(l.Allocations, newAllocation(inv, l, res.Batch.ID, l.BaseQuantity, res.Batch.UnitCost))
		}
		for _, in := range eff.Reverse {
			if in.LineID == nil || *in.LineID != l.ID {
				continue
			}
			cost := types.Zero()
			for _, b := range out.Reversed[l.ID] {
				if b.ID == in.BatchID {
					cost = b.UnitCost
				}
			}
			l.Allocations = append(l.Allocations, newAllocation(inv, l, in.BatchID, in.Quantity.Neg(), cost))
		}
		allocs = append(allocs, l.Allocations...)
	}

	if err := s.repo.ReplaceLines(ctx, inv); err != nil {
		return err
	}
	if len(allocs) > 0 {
		if err := s.repo.SaveAllocations(ctx, allocs); err != nil {
			return fmt.Errorf("save allocations: %w", err)
		}
	}
	return s.repo.Update(ctx, inv)
}

func newAllocation(inv *Invoice, l *Line, batchID id.ID, qty types.Quantity, unitCost types.Money) LineAllocation {
	return LineAllocation{
		ID:         id.New(),
		Scope:      inv.Scope,
		DocumentID: inv.ID,
		LineID:     l.ID,
		BatchID:    batchID,
		Quantity:   qty,
		UnitCost:   unitCost,
	}
}

// loadReturnBasis locks the original invoice of a return and re-checks
// the returned quantities against every other posted return.
func (s *Service) loadReturnBasis(ctx context.Context, tc tenant.Context, ret *Invoice) (*returnBasis, error) {
	if ret.OriginalID == nil {
		return nil, apperror.NewValidation("return does not reference an original invoice")
	}
	original, err := s.repo.GetForUpdate(ctx, tc, *ret.OriginalID)
	if err != nil {
		return nil, err
	}
	if original.Kind != KindSalesInvoice || !original.IsPosted() {
		return nil, apperror.NewValidation("only posted sales invoices can be returned")
	}

	returns, err := s.repo.ListReturns(ctx, tc, original.ID)
	if err != nil {
		return nil, err
	}
	basis := newReturnBasis(original, returns, ret.ID, true)

	var reasons []string
	for _, l := range ret.Lines {
		if l.OriginalLineID == nil {
			reasons = append(reasons, lineReason(l, "return line does not reference an original line"))
			continue
		}
		r, ok := basis.remaining[*l.OriginalLineID]
		if !ok {
			reasons = append(reasons, lineReason(l, "original line not found"))
			continue
		}
		if l.Quantity.Abs().GreaterThan(r.Quantity) {
			reasons = append(reasons, lineReason(l, "return quantity exceeds returnable quantity"))
		}
	}
	if len(reasons) > 0 {
		return nil, apperror.NewValidationFailed("return cannot be posted", reasons)
	}
	return basis, nil
}

var _ ledger.Source = (*Invoice)(nil)
