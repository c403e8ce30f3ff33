// Package pricing derives per-unit prices from pack-level purchase data
// and checks batch prices against the configured pricing policy.
//
// Every derived monetary value is rounded to two places where it is
// computed, so stored and recomputed totals agree.
package pricing

import (
	"github.com/shopspring/decimal"

	"medcore/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// Validation reasons reported by UnitPricing and CheckBatchPrices.
const (
	ReasonPackCostNotPositive = "pack cost must be greater than zero"
	ReasonPackSaleNotPositive = "pack sale price must be greater than zero"
	ReasonFactorNotPositive   = "conversion factor must be greater than zero"
	ReasonSaleBelowCost       = "sale price cannot be less than cost price"
	ReasonSaleAboveMRP        = "sale price cannot exceed MRP"
)

// PackInput describes a purchase pack: its cost, its sale price and how many
// base units one pack holds.
type PackInput struct {
	PackCost      types.Money
	PackSalePrice types.Money
	Factor        types.Factor
	MRP           decimal.NullDecimal
}

// UnitPrice is the per-unit derivation of a PackInput.
// Reasons lists every failed check; the numbers are filled in regardless.
type UnitPrice struct {
	UnitCost      types.Money `json:"unitCost"`
	UnitSalePrice types.Money `json:"unitSalePrice"`
	UnitMRP       types.Money `json:"unitMrp,omitempty"`
	MarginPct     types.Money `json:"marginPct"`
	MarkupPct     types.Money `json:"markupPct"`
	IsValid       bool        `json:"isValid"`
	Reasons       []string    `json:"reasons,omitempty"`
}

// UnitPricing derives unit cost, unit sale price, margin and markup.
// Validation failures accumulate instead of short-circuiting.
func UnitPricing(in PackInput) UnitPrice {
	var out UnitPrice

	if !in.PackCost.IsPositive() {
		out.Reasons = append(out.Reasons, ReasonPackCostNotPositive)
	}
	if !in.PackSalePrice.IsPositive() {
		out.Reasons = append(out.Reasons, ReasonPackSaleNotPositive)
	}
	if !in.Factor.IsPositive() {
		out.Reasons = append(out.Reasons, ReasonFactorNotPositive)
	}
	if in.PackSalePrice.LessThan(in.PackCost) {
		out.Reasons = append(out.Reasons, ReasonSaleBelowCost)
	}
	if in.MRP.Valid && in.PackSalePrice.GreaterThan(in.MRP.Decimal) {
		out.Reasons = append(out.Reasons, ReasonSaleAboveMRP)
	}

	if in.Factor.IsPositive() {
		out.UnitCost = types.RoundMoney(in.PackCost.Div(in.Factor))
		out.UnitSalePrice = types.RoundMoney(in.PackSalePrice.Div(in.Factor))
		if in.MRP.Valid {
			out.UnitMRP = types.RoundMoney(in.MRP.Decimal.Div(in.Factor))
		}
	}
	out.MarginPct = MarginPct(in.PackCost, in.PackSalePrice)
	out.MarkupPct = MarkupPct(in.PackCost, in.PackSalePrice)

	out.IsValid = len(out.Reasons) == 0
	return out
}

// MarginPct is (sale-cost)/sale*100, zero when sale is not positive.
func MarginPct(cost, sale types.Money) types.Money {
	if !sale.IsPositive() {
		return types.Zero()
	}
	return types.RoundMoney(sale.Sub(cost).Div(sale).Mul(hundred))
}

// MarkupPct is (sale-cost)/cost*100, zero when cost is not positive.
func MarkupPct(cost, sale types.Money) types.Money {
	if !cost.IsPositive() {
		return types.Zero()
	}
	return types.RoundMoney(sale.Sub(cost).Div(cost).Mul(hundred))
}

// Amounts are the monetary figures of one document line.
type Amounts struct {
	Gross    types.Money `json:"gross"`
	Discount types.Money `json:"discount"`
	Tax      types.Money `json:"tax"`
	Net      types.Money `json:"net"`
}

// LineAmounts computes net = quantity*unitPrice - discount + tax.
// Gross is rounded before discount and tax are applied.
func LineAmounts(qty types.Quantity, unitPrice, discount, tax types.Money) Amounts {
	gross := types.RoundMoney(qty.Mul(unitPrice))
	discount = types.RoundMoney(discount)
	tax = types.RoundMoney(tax)
	return Amounts{
		Gross:    gross,
		Discount: discount,
		Tax:      tax,
		Net:      gross.Sub(discount).Add(tax),
	}
}

// Prorate returns amount * part / whole rounded to two places.
func Prorate(amount types.Money, part, whole types.Quantity) types.Money {
	if whole.IsZero() {
		return types.Zero()
	}
	return types.RoundMoney(amount.Mul(part).Div(whole))
}
