package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

func draft(kind Kind, lines ...LineInput) *Invoice {
	inv := NewInvoice(tenant.New(id.New(), "u"), kind, "patient:1", "inr", time.Time{})
	for _, in := range lines {
		inv.Lines = append(inv.Lines, inv.newLine(in))
	}
	inv.Recalculate()
	return inv
}

func TestInvoice_ValidateTotalSign(t *testing.T) {
	inv := draft(KindSalesInvoice, LineInput{Description: "fee", Quantity: types.MustQuantity("1"), UnitPrice: types.MustMoney("10")})
	require.NoError(t, inv.ValidateTotal())

	inv.Total = types.MustMoney("-1")
	assert.True(t, apperror.Is(inv.ValidateTotal(), apperror.CodeInvalidTotal))

	ret := draft(KindSalesReturn, LineInput{Description: "fee", Quantity: types.MustQuantity("-1"), UnitPrice: types.MustMoney("10")})
	require.NoError(t, ret.Validate(context.Background()))
	require.NoError(t, ret.ValidateTotal())

	ret.Total = types.MustMoney("5")
	assert.True(t, apperror.Is(ret.ValidateTotal(), apperror.CodeInvalidTotal))
}

func TestInvoice_ValidateCollectsLineReasons(t *testing.T) {
	inv := draft(KindSalesInvoice,
		LineInput{Description: "neg", Quantity: types.MustQuantity("-1"), UnitPrice: types.MustMoney("10")},
		LineInput{Quantity: types.MustQuantity("1"), UnitPrice: types.MustMoney("10"), Tax: types.MustMoney("-1")},
	)
	err := inv.Validate(context.Background())
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	reasons, _ := appErr.Details["reasons"].([]string)
	assert.Len(t, reasons, 3)

	empty := draft(KindSalesInvoice)
	assert.True(t, apperror.Is(empty.Validate(context.Background()), apperror.CodeEmptyDocument))
}

func TestInvoice_ApplyPayment(t *testing.T) {
	inv := draft(KindSalesInvoice, LineInput{Description: "fee", Quantity: types.MustQuantity("1"), UnitPrice: types.MustMoney("100")})

	_, err := inv.ApplyPayment(types.MustMoney("10"))
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition), "drafts cannot be paid")

	require.NoError(t, inv.TransitionTo(entity.StatusPosted))
	overpaid, err := inv.ApplyPayment(types.MustMoney("40"))
	require.NoError(t, err)
	assert.False(t, overpaid)
	assert.Equal(t, entity.StatusPosted, inv.Status)

	overpaid, err = inv.ApplyPayment(types.MustMoney("70"))
	require.NoError(t, err)
	assert.True(t, overpaid)
	assert.Equal(t, entity.StatusPaid, inv.Status)
	assert.True(t, inv.Outstanding.Equal(types.MustMoney("-10")))
	assert.True(t, inv.Total.Equal(types.MustMoney("100")), "payments never change the total")
}

func TestInvoice_CreditApplyPayment(t *testing.T) {
	ret := draft(KindSalesReturn, LineInput{Description: "fee", Quantity: types.MustQuantity("-1"), UnitPrice: types.MustMoney("30")})
	require.NoError(t, ret.TransitionTo(entity.StatusPosted))

	overpaid, err := ret.ApplyPayment(types.MustMoney("30"))
	require.NoError(t, err)
	assert.False(t, overpaid)
	assert.Equal(t, entity.StatusPaid, ret.Status)
	assert.True(t, ret.Outstanding.IsZero())
}
