package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

type sliceRepo struct {
	records []*Record
}

func (r *sliceRepo) Append(_ context.Context, records ...*Record) error {
	r.records = append(r.records, records...)
	return nil
}

func (r *sliceRepo) ListByDocument(_ context.Context, tc tenant.Context, documentID id.ID) ([]*Record, error) {
	var out []*Record
	for _, rec := range r.records {
		if rec.DocumentID == documentID && rec.TenantID == tc.TenantID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func docRef(tc tenant.Context, total string) Ref {
	return Ref{
		ID:       id.New(),
		Scope:    tc.Scope(),
		Kind:     "sales_invoice",
		Number:   "INV-2026-00001",
		Total:    types.MustMoney(total),
		Quantity: types.MustQuantity("10"),
	}
}

func TestPoster_PostThenVoidNetsToZero(t *testing.T) {
	ctx := context.Background()
	tc := tenant.New(id.New(), "clerk")
	p := NewPoster(&sliceRepo{})

	ref := docRef(tc, "118.00")
	posted, err := p.Posted(ctx, tc, ref, map[string]string{"status": "posted"})
	require.NoError(t, err)
	assert.Equal(t, ChangeInsert, posted.ChangeType)
	assert.JSONEq(t, `{"status":"posted"}`, string(posted.NewData))

	rec, err := p.Reconcile(ctx, tc, ref.ID, ref.Total)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)

	voided, err := p.Voided(ctx, tc, ref, nil)
	require.NoError(t, err)
	assert.Equal(t, ChangeReversal, voided.ChangeType)
	assert.True(t, voided.AmountDelta.Equal(types.MustMoney("-118")))
	require.NotNil(t, voided.Reverses)
	assert.Equal(t, posted.ID, *voided.Reverses)

	_, err = p.Reconcile(ctx, tc, ref.ID, types.Zero())
	assert.NoError(t, err)
}

func TestPoster_VoidOfDraftHasZeroDelta(t *testing.T) {
	ctx := context.Background()
	tc := tenant.New(id.New(), "clerk")
	p := NewPoster(&sliceRepo{})

	rec, err := p.Voided(ctx, tc, docRef(tc, "50"), nil)
	require.NoError(t, err)
	assert.True(t, rec.AmountDelta.IsZero())
	assert.Nil(t, rec.Reverses)
}

func TestPoster_PaymentKeepsDocumentBalance(t *testing.T) {
	ctx := context.Background()
	tc := tenant.New(id.New(), "cashier")
	p := NewPoster(&sliceRepo{})

	inv := docRef(tc, "100")
	_, err := p.Posted(ctx, tc, inv, nil)
	require.NoError(t, err)

	pay := Ref{ID: id.New(), Scope: tc.Scope(), Kind: "payment", Total: types.MustMoney("60")}
	_, err = p.Posted(ctx, tc, pay, nil)
	require.NoError(t, err)

	upd, err := p.PaymentApplied(ctx, tc, pay, inv,
		map[string]string{"outstanding": "100"}, map[string]string{"outstanding": "40"})
	require.NoError(t, err)
	assert.True(t, upd.AmountDelta.IsZero())
	assert.NotEmpty(t, upd.OldData)
	assert.NotEmpty(t, upd.NewData)
	assert.Equal(t, pay.ID, *upd.CausedBy)

	_, err = p.Reconcile(ctx, tc, inv.ID, inv.Total)
	assert.NoError(t, err)
	_, err = p.Reconcile(ctx, tc, pay.ID, pay.Total)
	assert.NoError(t, err)
}

func TestPoster_CorrectionKeepsBothSnapshots(t *testing.T) {
	ctx := context.Background()
	tc := tenant.New(id.New(), "clerk")
	p := NewPoster(&sliceRepo{})

	ref := docRef(tc, "118.00")
	_, err := p.Posted(ctx, tc, ref, map[string]string{"total": "118.00"})
	require.NoError(t, err)

	corrected := ref
	corrected.Total = types.MustMoney("130.00")
	rec, err := p.Updated(ctx, tc, corrected,
		map[string]string{"total": "118.00"},
		map[string]string{"total": "130.00"},
		corrected.Total.Sub(ref.Total))
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdate, rec.ChangeType)
	assert.JSONEq(t, `{"total":"118.00"}`, string(rec.OldData))
	assert.JSONEq(t, `{"total":"130.00"}`, string(rec.NewData))
	assert.True(t, rec.AmountDelta.Equal(types.MustMoney("12.00")))

	r, err := p.Reconcile(ctx, tc, ref.ID, corrected.Total)
	require.NoError(t, err)
	assert.True(t, r.Balanced)

	_, err = p.Reconcile(ctx, tc, ref.ID, ref.Total)
	assert.True(t, apperror.Is(err, CodeOutOfBalance))
}

func TestPoster_ReturnLinksOriginal(t *testing.T) {
	ctx := context.Background()
	tc := tenant.New(id.New(), "clerk")
	p := NewPoster(&sliceRepo{})

	orig := docRef(tc, "100")
	posted, err := p.Posted(ctx, tc, orig, nil)
	require.NoError(t, err)

	ret := Ref{ID: id.New(), Scope: tc.Scope(), Kind: "sales_return", Total: types.MustMoney("-40"), Quantity: types.MustQuantity("-4")}
	rec, err := p.Returned(ctx, tc, ret, orig, nil)
	require.NoError(t, err)

	assert.Equal(t, ChangeReversal, rec.ChangeType)
	assert.True(t, rec.AmountDelta.Equal(types.MustMoney("-40")))
	assert.Equal(t, posted.ID, *rec.Reverses)
	assert.Equal(t, orig.ID, *rec.CausedBy)
}

func TestPoster_ReconcileDetectsDrift(t *testing.T) {
	ctx := context.Background()
	tc := tenant.New(id.New(), "clerk")
	p := NewPoster(&sliceRepo{})

	ref := docRef(tc, "10")
	_, err := p.Posted(ctx, tc, ref, nil)
	require.NoError(t, err)

	r, err := p.Reconcile(ctx, tc, ref.ID, types.MustMoney("11"))
	require.Error(t, err)
	assert.False(t, r.Balanced)
	assert.True(t, apperror.Is(err, CodeOutOfBalance))
}
