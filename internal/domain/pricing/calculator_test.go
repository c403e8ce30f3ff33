package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/types"
)

func TestUnitPricing_ValidPack(t *testing.T) {
	got := UnitPricing(PackInput{
		PackCost:      types.MustMoney("30"),
		PackSalePrice: types.MustMoney("45"),
		Factor:        types.MustQuantity("15"),
	})

	assert.True(t, got.IsValid)
	assert.Empty(t, got.Reasons)
	assert.Equal(t, "2.00", got.UnitCost.StringFixed(2))
	assert.Equal(t, "3.00", got.UnitSalePrice.StringFixed(2))
	assert.Equal(t, "33.33", got.MarginPct.StringFixed(2))
	assert.Equal(t, "50.00", got.MarkupPct.StringFixed(2))
}

func TestUnitPricing_SaleBelowCost(t *testing.T) {
	got := UnitPricing(PackInput{
		PackCost:      types.MustMoney("50"),
		PackSalePrice: types.MustMoney("40"),
		Factor:        types.MustQuantity("10"),
	})

	assert.False(t, got.IsValid)
	assert.Contains(t, got.Reasons, ReasonSaleBelowCost)
	assert.Equal(t, "5.00", got.UnitCost.StringFixed(2))
	assert.Equal(t, "4.00", got.UnitSalePrice.StringFixed(2))
}

func TestUnitPricing_AccumulatesReasons(t *testing.T) {
	got := UnitPricing(PackInput{
		PackCost:      types.MustMoney("0"),
		PackSalePrice: types.MustMoney("120"),
		Factor:        types.MustQuantity("0"),
		MRP:           decimal.NewNullDecimal(types.MustMoney("100")),
	})

	assert.False(t, got.IsValid)
	assert.ElementsMatch(t, []string{
		ReasonPackCostNotPositive,
		ReasonFactorNotPositive,
		ReasonSaleAboveMRP,
	}, got.Reasons)
	assert.True(t, got.UnitCost.IsZero())
}

func TestLineAmounts(t *testing.T) {
	got := LineAmounts(types.MustQuantity("3"), types.MustMoney("10.333"), types.MustMoney("1"), types.MustMoney("1.55"))

	assert.Equal(t, "31.00", got.Gross.StringFixed(2))
	assert.Equal(t, "31.55", got.Net.StringFixed(2))
}

func TestProrate(t *testing.T) {
	assert.Equal(t, "3.33", Prorate(types.MustMoney("10"), types.MustQuantity("1"), types.MustQuantity("3")).StringFixed(2))
	assert.True(t, Prorate(types.MustMoney("10"), types.MustQuantity("1"), types.Zero()).IsZero())
}

func TestPolicy_Severity(t *testing.T) {
	cost, sale := types.MustMoney("5"), types.MustMoney("4")

	soft := DefaultPolicy().CheckBatchPrices(cost, sale, decimal.NullDecimal{})
	assert.NoError(t, soft.Err())
	assert.Equal(t, []string{ReasonSaleBelowCost}, soft.Warnings())

	hardPolicy, err := NewPolicy(PolicyConfig{SaleBelowCost: SeverityHard, SaleAboveMRP: SeveritySoft})
	require.NoError(t, err)
	hard := hardPolicy.CheckBatchPrices(cost, sale, decimal.NullDecimal{})
	require.Error(t, hard.Err())
	assert.True(t, apperror.Is(hard.Err(), apperror.CodeValidation))
	assert.Empty(t, hard.Warnings())
}

func TestPolicy_CELRule(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{
		SaleBelowCost: SeveritySoft,
		SaleAboveMRP:  SeveritySoft,
		Rules: []Rule{{
			Name:     "min_margin",
			Expr:     "margin_pct >= 10.0",
			Message:  "margin must be at least 10%",
			Severity: SeverityHard,
		}},
	})
	require.NoError(t, err)

	assert.NoError(t, p.CheckBatchPrices(types.MustMoney("2"), types.MustMoney("3"), decimal.NullDecimal{}).Err())

	check := p.CheckBatchPrices(types.MustMoney("2"), types.MustMoney("2.10"), decimal.NullDecimal{})
	require.Error(t, check.Err())
	appErr, ok := apperror.AsAppError(check.Err())
	require.True(t, ok)
	assert.Equal(t, []string{"margin must be at least 10%"}, appErr.Details["reasons"])
}

func TestNewPolicy_RejectsBadConfig(t *testing.T) {
	_, err := NewPolicy(PolicyConfig{SaleBelowCost: "maybe", SaleAboveMRP: SeveritySoft})
	assert.Error(t, err)

	_, err = NewPolicy(PolicyConfig{
		SaleBelowCost: SeveritySoft,
		SaleAboveMRP:  SeveritySoft,
		Rules:         []Rule{{Name: "n", Expr: "cost + 1.0", Message: "m", Severity: SeveritySoft}},
	})
	assert.Error(t, err)
}
