// Package reports builds read-only views over stock and billing: stock
// valuation by batch cost and receivables aging.
package reports

import (
	"context"
	"sort"
	"time"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/tx"
	"medcore/internal/core/types"
	"medcore/internal/domain"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/documents/invoice"
)

const pageSize = 500

// Service provides report generation operations.
type Service struct {
	products  ProductSource
	batches   BatchSource
	documents DocumentSource
	snapshot  tx.ReadOnlyManager
	now       func() time.Time
}

// NewService creates a new reports service.
func NewService(products ProductSource, batches BatchSource, documents DocumentSource) *Service {
	return &Service{products: products, batches: batches, documents: documents, now: time.Now}
}

// WithSnapshot makes every report read inside one read-only transaction,
// so totals are computed from a consistent view of the store.
func (s *Service) WithSnapshot(txm tx.ReadOnlyManager) *Service {
	s.snapshot = txm
	return s
}

func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.snapshot == nil {
		return fn(ctx)
	}
	return s.snapshot.ReadOnly(ctx, fn)
}

// WithClock overrides the clock used when a filter carries no AsOf.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetStockValuation values available stock at batch cost and sale price
// and reports expired and soon-to-expire quantities per product.
func (s *Service) GetStockValuation(ctx context.Context, tc tenant.Context, filter StockValuationFilter) (*StockValuationReport, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if filter.ExpiringWithinDays < 0 {
		return nil, apperror.NewValidation("expiringWithinDays cannot be negative")
	}

	asOf := s.now()
	if filter.AsOf != nil {
		asOf = *filter.AsOf
	}
	horizon := asOf.AddDate(0, 0, filter.ExpiringWithinDays)

	var report *StockValuationReport
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.stockValuation(ctx, tc, filter, asOf, horizon)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) stockValuation(ctx context.Context, tc tenant.Context, filter StockValuationFilter, asOf, horizon time.Time) (*StockValuationReport, error) {
	products, err := s.selectProducts(ctx, tc, filter.ProductIDs)
	if err != nil {
		return nil, err
	}

	report := &StockValuationReport{
		AsOf:             asOf,
		Items:            []StockValuationItem{},
		TotalCostValue:   types.Zero(),
		TotalSaleValue:   types.Zero(),
		TotalExpiredCost: types.Zero(),
	}
	for _, p := range products {
		if !p.Stocked {
			continue
		}
		batches, err := s.batches.ListBatches(ctx, tc, p.ID)
		if err != nil {
			return nil, err
		}

		item := StockValuationItem{
			ProductID:    p.ID,
			ProductSKU:   p.SKU,
			ProductName:  p.Name,
			BaseUnit:     p.BaseUnit,
			OnHand:       types.Zero(),
			Available:    types.Zero(),
			Expired:      types.Zero(),
			ExpiringSoon: types.Zero(),
			CostValue:    types.Zero(),
			SaleValue:    types.Zero(),
			ExpiredCost:  types.Zero(),
		}
		for _, b := range batches {
			if !b.QuantityOnHand.IsPositive() {
				continue
			}
			item.Batches++
			item.OnHand = item.OnHand.Add(b.QuantityOnHand)

			if b.ExpiredAt(asOf) {
				item.Expired = item.Expired.Add(b.QuantityOnHand)
				item.ExpiredCost = item.ExpiredCost.Add(b.QuantityOnHand.Mul(b.UnitCost))
				continue
			}
			item.Available = item.Available.Add(b.QuantityOnHand)
			item.CostValue = item.CostValue.Add(b.QuantityOnHand.Mul(b.UnitCost))
			item.SaleValue = item.SaleValue.Add(b.QuantityOnHand.Mul(b.SalePrice))

			if b.ExpiryDate != nil {
				if b.ExpiredAt(horizon) {
					item.ExpiringSoon = item.ExpiringSoon.Add(b.QuantityOnHand)
				}
				if item.NextExpiry == nil || b.ExpiryDate.Before(*item.NextExpiry) {
					item.NextExpiry = b.ExpiryDate
				}
			}
		}
		if item.Batches == 0 && !filter.IncludeZero {
			continue
		}

		item.CostValue = types.RoundMoney(item.CostValue)
		item.SaleValue = types.RoundMoney(item.SaleValue)
		item.ExpiredCost = types.RoundMoney(item.ExpiredCost)

		report.TotalCostValue = report.TotalCostValue.Add(item.CostValue)
		report.TotalSaleValue = report.TotalSaleValue.Add(item.SaleValue)
		report.TotalExpiredCost = report.TotalExpiredCost.Add(item.ExpiredCost)
		report.Items = append(report.Items, item)
	}

	sort.Slice(report.Items, func(i, j int) bool {
		return report.Items[i].ProductSKU < report.Items[j].ProductSKU
	})
	report.TotalItems = len(report.Items)
	return report, nil
}

func (s *Service) selectProducts(ctx context.Context, tc tenant.Context, ids []id.ID) ([]*product.Product, error) {
	var out []*product.Product
	want := make(map[id.ID]bool, len(ids))
	for _, pid := range ids {
		want[pid] = true
	}

	filter := domain.ListFilter{Limit: pageSize}
	for {
		page, err := s.products.List(ctx, tc, filter)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			if len(want) == 0 || want[p.ID] {
				out = append(out, p)
			}
		}
		filter.Offset += len(page.Items)
		if len(page.Items) == 0 || int64(filter.Offset) >= page.TotalCount {
			return out, nil
		}
	}
}

// GetReceivables groups unpaid posted sales invoices by party and ages
// the outstanding amounts by document date.
func (s *Service) GetReceivables(ctx context.Context, tc tenant.Context, filter ReceivablesFilter) (*ReceivablesReport, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	asOf := s.now()
	if filter.AsOf != nil {
		asOf = *filter.AsOf
	}

	report := &ReceivablesReport{
		AsOf:             asOf,
		Items:            []ReceivableItem{},
		TotalOutstanding: types.Zero(),
		Aging:            zeroBuckets(),
	}
	byParty := make(map[string]*ReceivableItem)

	listFilter := invoice.ListFilter{
		ListFilter: domain.ListFilter{Status: string(entity.StatusPosted), Limit: pageSize},
		Kind:       invoice.KindSalesInvoice,
		PartyRef:   filter.PartyRef,
	}
	err := s.read(ctx, func(ctx context.Context) error {
		for {
			page, err := s.documents.List(ctx, tc, listFilter)
			if err != nil {
				return err
			}
			for _, inv := range page.Items {
				if !inv.Outstanding.IsPositive() || inv.Date.After(asOf) {
					continue
				}
				item, ok := byParty[inv.PartyRef]
				if !ok {
					item = &ReceivableItem{
						PartyRef:       inv.PartyRef,
						Outstanding:    types.Zero(),
						OldestDocument: inv.Date,
						Aging:          zeroBuckets(),
					}
					byParty[inv.PartyRef] = item
				}
				item.Documents++
				item.Outstanding = item.Outstanding.Add(inv.Outstanding)
				if inv.Date.Before(item.OldestDocument) {
					item.OldestDocument = inv.Date
				}
				age := int(asOf.Sub(inv.Date).Hours() / 24)
				item.Aging.add(age, inv.Outstanding)
				report.Aging.add(age, inv.Outstanding)
				report.TotalOutstanding = report.TotalOutstanding.Add(inv.Outstanding)
			}
			listFilter.Offset += len(page.Items)
			if len(page.Items) == 0 || int64(listFilter.Offset) >= page.TotalCount {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}

	for _, item := range byParty {
		report.Items = append(report.Items, *item)
	}
	sort.Slice(report.Items, func(i, j int) bool {
		if !report.Items[i].Outstanding.Equal(report.Items[j].Outstanding) {
			return report.Items[i].Outstanding.GreaterThan(report.Items[j].Outstanding)
		}
		return report.Items[i].PartyRef < report.Items[j].PartyRef
	})
	return report, nil
}

func zeroBuckets() AgingBuckets {
	return AgingBuckets{Current: types.Zero(), Days31To60: types.Zero(), Days61To90: types.Zero(), Over90: types.Zero()}
}

func (b *AgingBuckets) add(ageDays int, amount types.Money) {
	switch {
	case ageDays <= 30:
		b.Current = b.Current.Add(amount)
	case ageDays <= 60:
		b.Days31To60 = b.Days31To60.Add(amount)
	case ageDays <= 90:
		b.Days61To90 = b.Days61To90.Add(amount)
	default:
		b.Over90 = b.Over90.Add(amount)
	}
}
