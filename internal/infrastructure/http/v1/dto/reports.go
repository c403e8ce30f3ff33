package dto

import (
	"time"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/domain/reports"
)

// StockValuationQuery is the query string of GET /reports/stock-valuation.
type StockValuationQuery struct {
	AsOf               *time.Time `form:"asOf" time_format:"2006-01-02"`
	ExpiringWithinDays int        `form:"expiringWithinDays" binding:"omitempty,min=0,max=3650"`
	ProductIDs         []string   `form:"productId"`
	IncludeZero        bool       `form:"includeZero"`
}

// ToFilter converts the query to a report filter.
func (q StockValuationQuery) ToFilter() (reports.StockValuationFilter, error) {
	f := reports.StockValuationFilter{
		AsOf:               q.AsOf,
		ExpiringWithinDays: q.ExpiringWithinDays,
		IncludeZero:        q.IncludeZero,
	}
	for _, raw := range q.ProductIDs {
		pid, err := id.Parse(raw)
		if err != nil {
			return f, apperror.NewValidation("invalid productId").WithDetail("productId", raw)
		}
		f.ProductIDs = append(f.ProductIDs, pid)
	}
	return f, nil
}

// ReceivablesQuery is the query string of GET /reports/receivables.
type ReceivablesQuery struct {
	AsOf     *time.Time `form:"asOf" time_format:"2006-01-02"`
	PartyRef string     `form:"partyRef" binding:"max=128"`
}

// ToFilter converts the query to a report filter.
func (q ReceivablesQuery) ToFilter() reports.ReceivablesFilter {
	return reports.ReceivablesFilter{AsOf: q.AsOf, PartyRef: q.PartyRef}
}
