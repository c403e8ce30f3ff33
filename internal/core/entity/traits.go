package entity

import (
	"context"
	"strings"

	"medcore/internal/core/apperror"
)

// CurrencyAware is a trait for entities that carry an ISO 4217 currency code.
type CurrencyAware struct {
	Currency string `db:"currency" json:"currency"`
}

// ValidateCurrency ensures a three-letter currency is set.
func (c *CurrencyAware) ValidateCurrency(ctx context.Context) error {
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return apperror.NewValidation("currency must be a 3-letter ISO code").
			WithDetail("field", "currency")
	}
	c.Currency = strings.ToUpper(c.Currency)
	return nil
}
