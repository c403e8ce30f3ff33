// Package types provides common numeric types for money and quantities.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits every derived monetary value is rounded to.
const MoneyPlaces int32 = 2

// QuantityPlaces matches NUMERIC(18,4) columns.
const QuantityPlaces int32 = 4

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is an exact decimal quantity, always in a declared unit of measure.
type Quantity = decimal.Decimal

// Factor is a positive rational multiplier between two units.
type Factor = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MustQuantity parses a quantity literal, panics on error.
func MustQuantity(s string) Quantity {
	return MustMoney(s)
}

// NewQuantity creates a whole-number quantity.
func NewQuantity(v int64) Quantity {
	return decimal.NewFromInt(v)
}

// Zero returns zero value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// RoundMoney rounds a derived monetary value to MoneyPlaces (half away from zero).
func RoundMoney(m Money) Money {
	return m.Round(MoneyPlaces)
}

// RoundQuantity rounds a converted quantity to QuantityPlaces.
func RoundQuantity(q Quantity) Quantity {
	return q.Round(QuantityPlaces)
}

// Sum adds a list of decimals.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ParseDecimal parses a decimal field and names it in the error.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
