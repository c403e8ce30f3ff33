package app

import (
	"context"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/registers/batch"
	"medcore/pkg/logger"
)

// LowStockAlert warns when a posted sales invoice leaves a stocked product
// at or below threshold available units. Hooks run after commit, so a
// failing lookup is only logged.
type LowStockAlert struct {
	products  *product.Service
	stock     *batch.Service
	threshold types.Quantity
	log       *logger.Logger
}

// NewLowStockAlert creates the alert. log may be nil.
func NewLowStockAlert(products *product.Service, stock *batch.Service, threshold types.Quantity, log *logger.Logger) *LowStockAlert {
	if log == nil {
		log = logger.Default()
	}
	return &LowStockAlert{products: products, stock: stock, threshold: threshold, log: log.WithComponent("low-stock")}
}

// Register attaches the alert to the document engine.
func (a *LowStockAlert) Register(hooks *domain.HookRegistry[*invoice.Invoice]) {
	hooks.On(domain.AfterPost, a.check)
}

func (a *LowStockAlert) check(ctx context.Context, inv *invoice.Invoice) error {
	if inv.Kind != invoice.KindSalesInvoice {
		return nil
	}
	tc := tenant.New(inv.TenantID, inv.CreatedBy)
	if !id.IsNil(inv.CompanyID) {
		tc = tc.WithCompany(inv.CompanyID)
	}

	seen := make(map[id.ID]bool)
	for _, l := range inv.Lines {
		if l.ProductID == nil || seen[*l.ProductID] {
			continue
		}
		seen[*l.ProductID] = true

		p, err := a.products.Get(ctx, tc, *l.ProductID)
		if err != nil {
			return err
		}
		if !p.Stocked {
			continue
		}
		available, err := a.stock.Available(ctx, tc, p.ID)
		if err != nil {
			return err
		}
		if available.GreaterThan(a.threshold) {
			continue
		}
		a.log.WithContext(ctx).Warnw("low stock",
			"product_id", p.ID,
			"sku", p.SKU,
			"available", available.String(),
			"threshold", a.threshold.String(),
			"document", inv.Number,
		)
	}
	return nil
}
