package reports

import (
	"time"

	"medcore/internal/core/id"
	"medcore/internal/core/types"
)

// --- Stock Valuation ---

// StockValuationFilter defines filter for the stock valuation report.
type StockValuationFilter struct {
	// AsOf decides which batches count as expired; defaults to now
	AsOf *time.Time

	// ExpiringWithinDays flags batches that expire inside the window
	ExpiringWithinDays int

	// ProductIDs restricts the report; empty means every stocked product
	ProductIDs []id.ID

	// IncludeZero keeps products with nothing on hand
	IncludeZero bool
}

// StockValuationItem is one product row. Quantities are in the base unit.
type StockValuationItem struct {
	ProductID    id.ID          `json:"productId"`
	ProductSKU   string         `json:"productSku"`
	ProductName  string         `json:"productName"`
	BaseUnit     string         `json:"baseUnit"`
	Batches      int            `json:"batches"`
	OnHand       types.Quantity `json:"onHand"`
	Available    types.Quantity `json:"available"`
	Expired      types.Quantity `json:"expired"`
	ExpiringSoon types.Quantity `json:"expiringSoon"`

	// CostValue and SaleValue cover available stock only
	CostValue   types.Money `json:"costValue"`
	SaleValue   types.Money `json:"saleValue"`
	ExpiredCost types.Money `json:"expiredCost"`

	NextExpiry *time.Time `json:"nextExpiry,omitempty"`
}

// StockValuationReport represents the full valuation report.
type StockValuationReport struct {
	AsOf       time.Time            `json:"asOf"`
	Items      []StockValuationItem `json:"items"`
	TotalItems int                  `json:"totalItems"`

	// Summary totals
	TotalCostValue   types.Money `json:"totalCostValue"`
	TotalSaleValue   types.Money `json:"totalSaleValue"`
	TotalExpiredCost types.Money `json:"totalExpiredCost"`
}

// --- Receivables ---

// ReceivablesFilter defines filter for the receivables aging report.
type ReceivablesFilter struct {
	AsOf     *time.Time
	PartyRef string
}

// AgingBuckets splits an outstanding amount by document age.
type AgingBuckets struct {
	Current    types.Money `json:"current"` // 0-30 days
	Days31To60 types.Money `json:"days31To60"`
	Days61To90 types.Money `json:"days61To90"`
	Over90     types.Money `json:"over90"`
}

// ReceivableItem is the open balance of one party.
type ReceivableItem struct {
	PartyRef       string       `json:"partyRef"`
	Documents      int          `json:"documents"`
	Outstanding    types.Money  `json:"outstanding"`
	OldestDocument time.Time    `json:"oldestDocument"`
	Aging          AgingBuckets `json:"aging"`
}

// ReceivablesReport represents the full receivables report.
type ReceivablesReport struct {
	AsOf             time.Time        `json:"asOf"`
	Items            []ReceivableItem `json:"items"`
	TotalOutstanding types.Money      `json:"totalOutstanding"`
	Aging            AgingBuckets     `json:"aging"`
}
