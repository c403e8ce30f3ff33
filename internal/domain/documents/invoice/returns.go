package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/pricing"
	"medcore/internal/domain/registers/batch"
	"medcore/pkg/logger"
)

// Remaining is what is still returnable on an original line.
// All figures are magnitudes.
type Remaining struct {
	Quantity types.Quantity `json:"quantity"`
	Discount types.Money    `json:"discount"`
	Tax      types.Money    `json:"tax"`
	Net      types.Money    `json:"net"`
}

// ReturnableLine reports returnable quantity per original line.
type ReturnableLine struct {
	LineID      id.ID          `json:"lineId"`
	ProductID   *id.ID         `json:"productId,omitempty"`
	Description string         `json:"description"`
	Unit        string         `json:"unit"`
	Quantity    types.Quantity `json:"quantity"`
	Returned    types.Quantity `json:"returned"`
	Remaining   types.Quantity `json:"remaining"`
}

// ReturnLineInput selects Quantity (a positive magnitude) of an original line.
type ReturnLineInput struct {
	OriginalLineID id.ID
	Quantity       types.Quantity
}

// ReturnInput describes a credit note. No lines means "everything still
// returnable".
type ReturnInput struct {
	Reason string
	Date   time.Time
	Lines  []ReturnLineInput
}

// returnBasis is an original invoice plus what earlier returns already took.
type returnBasis struct {
	original  *Invoice
	remaining map[id.ID]Remaining

	// reversed[originalLineID][batchID] is stock already put back.
	reversed map[id.ID]map[id.ID]types.Quantity
}

// newReturnBasis counts returns other than exclude. With postedOnly only
// posted returns count, otherwise every non-void return does.
func newReturnBasis(original *Invoice, returns []*Invoice, exclude id.ID, postedOnly bool) *returnBasis {
	b := &returnBasis{
		original:  original,
		remaining: make(map[id.ID]Remaining, len(original.Lines)),
		reversed:  make(map[id.ID]map[id.ID]types.Quantity),
	}
	for _, l := range original.Lines {
		b.remaining[l.ID] = Remaining{
			Quantity: l.Quantity,
			Discount: l.Discount,
			Tax:      l.Tax,
			Net:      l.NetAmount,
		}
	}

	for _, r := range returns {
		if r.ID == exclude {
			continue
		}
		if postedOnly && !r.IsPosted() {
			continue
		}
		if !postedOnly && r.Status == entity.StatusVoid {
			continue
		}
		for _, l := range r.Lines {
			if l.OriginalLineID == nil {
				continue
			}
			rem, ok := b.remaining[*l.OriginalLineID]
			if !ok {
				continue
			}
			rem.Quantity = rem.Quantity.Sub(l.Quantity.Abs())
			rem.Discount = rem.Discount.Sub(l.Discount.Abs())
			rem.Tax = rem.Tax.Sub(l.Tax.Abs())
			rem.Net = rem.Net.Sub(l.NetAmount.Abs())
			b.remaining[*l.OriginalLineID] = rem

			for _, a := range l.Allocations {
				b.addReversed(*l.OriginalLineID, a.BatchID, a.Quantity.Abs())
			}
		}
	}
	return b
}

func (b *returnBasis) addReversed(lineID, batchID id.ID, qty types.Quantity) {
	if b.reversed[lineID] == nil {
		b.reversed[lineID] = make(map[id.ID]types.Quantity)
	}
	b.reversed[lineID][batchID] = b.reversed[lineID][batchID].Add(qty)
}

// returnLine prorates the remaining discount and tax for qty of an original line.
// Taking everything that remains uses the exact remainders, so cumulative
// returns negate the original line to the cent.
func (b *returnBasis) returnLine(ret *Invoice, orig *Line, qty types.Quantity) *Line {
	rem := b.remaining[orig.ID]

	var discount, tax types.Money
	if qty.Equal(rem.Quantity) {
		tax = rem.Tax
		gross := types.RoundMoney(qty.Mul(orig.UnitPrice))
		discount = gross.Add(tax).Sub(rem.Net)
	} else {
		// Prorating what remains keeps every partial return within the
		// unreturned amounts.
		discount = pricing.Prorate(rem.Discount, qty, rem.Quantity)
		tax = pricing.Prorate(rem.Tax, qty, rem.Quantity)
	}

	l := ret.newLine(LineInput{
		ProductID:   orig.ProductID,
		Description: orig.Description,
		Quantity:    qty.Neg(),
		Unit:        orig.Unit,
		UnitPrice:   orig.UnitPrice,
		Discount:    discount.Neg(),
		Tax:         tax.Neg(),
	})
	l.OriginalLineID = id.Ptr(orig.ID)

	rem.Quantity = rem.Quantity.Sub(qty)
	rem.Discount = rem.Discount.Sub(discount)
	rem.Tax = rem.Tax.Sub(tax)
	rem.Net = rem.Net.Sub(l.NetAmount.Abs())
	b.remaining[orig.ID] = rem
	return l
}

// reversalsFor puts base units of a return line back into the batches the
// original line was allocated from, last allocated first.
func (b *returnBasis) reversalsFor(ret *Invoice, l *Line, base types.Quantity) ([]batch.ReverseInput, error) {
	if b == nil || l.OriginalLineID == nil {
		return nil, apperror.NewValidation("return line does not reference an original line")
	}
	orig, ok := b.original.Line(*l.OriginalLineID)
	if !ok {
		return nil, apperror.NewNotFound("document line", *l.OriginalLineID)
	}

	need := base
	var out []batch.ReverseInput
	for i := len(orig.Allocations) - 1; i >= 0 && need.IsPositive(); i-- {
		a := orig.Allocations[i]
		avail := a.Quantity.Sub(b.reversed[orig.ID][a.BatchID])
		if !avail.IsPositive() {
			continue
		}
		take := need
		if avail.LessThan(take) {
			take = avail
		}
		out = append(out, batch.ReverseInput{
			BatchID:    a.BatchID,
			Quantity:   take,
			Reference:  fmt.Sprintf("return:%s:%s", l.ID, a.BatchID),
			DocumentID: id.Ptr(ret.ID),
			LineID:     id.Ptr(l.ID),
		})
		b.addReversed(orig.ID, a.BatchID, take)
		need = need.Sub(take)
	}
	if need.IsPositive() {
		return nil, apperror.NewValidation("returned quantity exceeds the stock allocated to the original line").
			WithDetail("line_id", l.ID).
			WithDetail("short", need.String())
	}
	return out, nil
}

// Returnable lists what can still be returned from a posted sales invoice.
func (s *Service) Returnable(ctx context.Context, tc tenant.Context, originalID id.ID) ([]ReturnableLine, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	original, err := s.repo.GetByID(ctx, tc, originalID)
	if err != nil {
		return nil, err
	}
	returns, err := s.repo.ListReturns(ctx, tc, originalID)
	if err != nil {
		return nil, err
	}
	basis := newReturnBasis(original, returns, id.Nil(), false)

	out := make([]ReturnableLine, 0, len(original.Lines))
	for _, l := range original.Lines {
		rem := basis.remaining[l.ID]
		out = append(out, ReturnableLine{
			LineID:      l.ID,
			ProductID:   l.ProductID,
			Description: l.Description,
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			Returned:    l.Quantity.Sub(rem.Quantity),
			Remaining:   rem.Quantity,
		})
	}
	return out, nil
}

// CreateReturn drafts a credit note against a posted sales invoice.
func (s *Service) CreateReturn(ctx context.Context, tc tenant.Context, originalID id.ID, in ReturnInput) (*Invoice, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	var ret *Invoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := s.repo.GetForUpdate(ctx, tc, originalID)
		if err != nil {
			return err
		}
		if original.Kind != KindSalesInvoice || !original.IsPosted() {
			return apperror.NewValidation("only posted sales invoices can be returned")
		}
		returns, err := s.repo.ListReturns(ctx, tc, originalID)
		if err != nil {
			return err
		}
		basis := newReturnBasis(original, returns, id.Nil(), false)

		selection := in.Lines
		if len(selection) == 0 {
			for _, l := range original.Lines {
				if rem := basis.remaining[l.ID]; rem.Quantity.IsPositive() {
					selection = append(selection, ReturnLineInput{OriginalLineID: l.ID, Quantity: rem.Quantity})
				}
			}
		}
		if len(selection) == 0 {
			return apperror.NewEmptyDocument()
		}

		ret = NewInvoice(tc, KindSalesReturn, original.PartyRef, original.Currency, in.Date)
		ret.Scope = original.Scope
		ret.OriginalID = id.Ptr(original.ID)
		ret.Reason = strings.TrimSpace(in.Reason)

		var reasons []string
		for _, sel := range selection {
			orig, ok := original.Line(sel.OriginalLineID)
			if !ok {
				reasons = append(reasons, fmt.Sprintf("original line %s not found", sel.OriginalLineID))
				continue
			}
			if !sel.Quantity.IsPositive() {
				reasons = append(reasons, lineReason(orig, "return quantity must be positive"))
				continue
			}
			if sel.Quantity.GreaterThan(basis.remaining[orig.ID].Quantity) {
				reasons = append(reasons, lineReason(orig, "return quantity exceeds returnable quantity"))
				continue
			}
			ret.Lines = append(ret.Lines, basis.returnLine(ret, orig, sel.Quantity))
		}
		if len(reasons) > 0 {
			return apperror.NewValidationFailed("invalid return", reasons)
		}

		ret.Recalculate()
		if err := ret.Validate(ctx); err != nil {
			return err
		}
		if err := ret.ValidateTotal(); err != nil {
			return err
		}

		number, err := s.nextNumber(ctx, tc, ret)
		if err != nil {
			return err
		}
		ret.Number = number
		return s.repo.Create(ctx, ret)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return drafted",
		"document_id", ret.ID,
		"original_id", originalID,
		"number", ret.Number,
		"total", ret.Total.String(),
	)
	return ret, nil
}
