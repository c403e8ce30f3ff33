package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/pkg/logger"
)

// CodeOutOfBalance is returned by Reconcile when deltas and total differ.
const CodeOutOfBalance = "LEDGER_OUT_OF_BALANCE"

// Poster emits ledger records for document transitions.
// It must be called inside the transaction that performs the transition.
type Poster struct {
	repo Repository
}

// NewPoster creates a ledger poster.
func NewPoster(repo Repository) *Poster {
	return &Poster{repo: repo}
}

// Posted records a document entering the posted state; delta = total.
func (p *Poster) Posted(ctx context.Context, tc tenant.Context, ref Ref, snapshot any) (*Record, error) {
	rec, err := p.newRecord(tc, ref, ChangeInsert)
	if err != nil {
		return nil, err
	}
	rec.AmountDelta = ref.Total
	rec.QuantityDelta = ref.Quantity
	if rec.NewData, err = encode(snapshot); err != nil {
		return nil, err
	}
	return rec, p.append(ctx, rec)
}

// Updated records a correction of a posted document. Both snapshots are kept;
// delta is the change of the document total.
func (p *Poster) Updated(ctx context.Context, tc tenant.Context, ref Ref, oldSnap, newSnap any, delta types.Money) (*Record, error) {
	rec, err := p.newRecord(tc, ref, ChangeUpdate)
	if err != nil {
		return nil, err
	}
	rec.AmountDelta = delta
	if rec.OldData, err = encode(oldSnap); err != nil {
		return nil, err
	}
	if rec.NewData, err = encode(newSnap); err != nil {
		return nil, err
	}
	return rec, p.append(ctx, rec)
}

// Voided negates everything recorded for the document so far.
// A never-posted draft yields a zero delta.
func (p *Poster) Voided(ctx context.Context, tc tenant.Context, ref Ref, snapshot any) (*Record, error) {
	history, err := p.repo.ListByDocument(ctx, tc, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("load ledger history: %w", err)
	}

	rec, err := p.newRecord(tc, ref, ChangeReversal)
	if err != nil {
		return nil, err
	}
	amount, qty := sum(history)
	rec.AmountDelta = amount.Neg()
	rec.QuantityDelta = qty.Neg()
	rec.Reverses = lastInsert(history)
	if rec.OldData, err = encode(snapshot); err != nil {
		return nil, err
	}
	return rec, p.append(ctx, rec)
}

// Returned records a posted return. Its delta is the return total, which is
// the exact negation of the returned fraction of the original.
func (p *Poster) Returned(ctx context.Context, tc tenant.Context, ret Ref, original Ref, snapshot any) (*Record, error) {
	history, err := p.repo.ListByDocument(ctx, tc, original.ID)
	if err != nil {
		return nil, fmt.Errorf("load original ledger history: %w", err)
	}

	rec, err := p.newRecord(tc, ret, ChangeReversal)
	if err != nil {
		return nil, err
	}
	rec.AmountDelta = ret.Total
	rec.QuantityDelta = ret.Quantity
	rec.Reverses = lastInsert(history)
	rec.CausedBy = id.Ptr(original.ID)
	if rec.NewData, err = encode(snapshot); err != nil {
		return nil, err
	}
	return rec, p.append(ctx, rec)
}

// PaymentApplied records a payment changing a document's outstanding amount.
// The document total is unchanged, so the delta is zero.
func (p *Poster) PaymentApplied(ctx context.Context, tc tenant.Context, payment Ref, doc Ref, before, after any) (*Record, error) {
	rec, err := p.newRecord(tc, doc, ChangeUpdate)
	if err != nil {
		return nil, err
	}
	rec.AmountDelta = types.Zero()
	rec.CausedBy = id.Ptr(payment.ID)
	if rec.OldData, err = encode(before); err != nil {
		return nil, err
	}
	if rec.NewData, err = encode(after); err != nil {
		return nil, err
	}
	return rec, p.append(ctx, rec)
}

// History returns the document's records oldest first.
func (p *Poster) History(ctx context.Context, tc tenant.Context, documentID id.ID) ([]*Record, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return p.repo.ListByDocument(ctx, tc, documentID)
}

// Reconcile checks Σ amount deltas against the stored total.
func (p *Poster) Reconcile(ctx context.Context, tc tenant.Context, documentID id.ID, total types.Money) (Reconciliation, error) {
	history, err := p.History(ctx, tc, documentID)
	if err != nil {
		return Reconciliation{}, err
	}
	amount, _ := sum(history)
	r := Reconciliation{
		DocumentID: documentID,
		Expected:   total,
		Recorded:   amount,
		Records:    len(history),
		Balanced:   amount.Equal(total),
	}
	if !r.Balanced {
		logger.Error(ctx, "ledger out of balance",
			"document_id", documentID,
			"expected", total.String(),
			"recorded", amount.String(),
		)
		return r, apperror.NewBusinessRule(CodeOutOfBalance, "ledger does not reconcile with document total").
			WithDetail("expected", total.String()).
			WithDetail("recorded", amount.String())
	}
	return r, nil
}

func (p *Poster) newRecord(tc tenant.Context, ref Ref, ct ChangeType) (*Record, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if id.IsNil(ref.ID) {
		return nil, apperror.NewValidation("ledger record requires a document")
	}
	return &Record{
		ID:             id.New(),
		Scope:          ref.Scope,
		DocumentID:     ref.ID,
		DocumentKind:   ref.Kind,
		DocumentNumber: ref.Number,
		ChangeType:     ct,
		AmountDelta:    types.Zero(),
		QuantityDelta:  types.Zero(),
		Actor:          tc.UserID,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (p *Poster) append(ctx context.Context, rec *Record) error {
	if err := p.repo.Append(ctx, rec); err != nil {
		return fmt.Errorf("append ledger record: %w", err)
	}
	logger.Debug(ctx, "ledger record appended",
		"document_id", rec.DocumentID,
		"change_type", rec.ChangeType,
		"amount_delta", rec.AmountDelta.String(),
	)
	return nil
}

func sum(records []*Record) (types.Money, types.Quantity) {
	amount, qty := types.Zero(), types.Zero()
	for _, r := range records {
		amount = amount.Add(r.AmountDelta)
		qty = qty.Add(r.QuantityDelta)
	}
	return amount, qty
}

func lastInsert(records []*Record) *id.ID {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ChangeType == ChangeInsert {
			return id.Ptr(records[i].ID)
		}
	}
	return nil
}

func encode(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode ledger snapshot: %w", err)
	}
	return b, nil
}
