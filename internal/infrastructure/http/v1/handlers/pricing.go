package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"medcore/internal/core/apperror"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/domain/pricing"
	"medcore/internal/infrastructure/http/v1/dto"
)

// PricingHandler serves the unit pricing calculator.
type PricingHandler struct {
	*BaseHandler
	products *product.Service
	units    *uom.Engine
	policy   *pricing.Policy
}

// NewPricingHandler creates a pricing handler.
func NewPricingHandler(base *BaseHandler, products *product.Service, units *uom.Engine, policy *pricing.Policy) *PricingHandler {
	return &PricingHandler{BaseHandler: base, products: products, units: units, policy: policy}
}

// RegisterRoutes mounts the pricing routes on rg.
func (h *PricingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/unit", h.UnitPricing)
}

// UnitPricing derives per-unit cost, sale price, margin and markup from a pack.
// POST /pricing/unit
func (h *PricingHandler) UnitPricing(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var req dto.UnitPricingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	factor := req.Factor.Decimal
	if !req.Factor.Valid {
		if req.ProductID == nil || req.PackUnit == "" {
			h.Error(c, apperror.NewValidation("factor or productId with packUnit is required"))
			return
		}
		ctx := c.Request.Context()
		p, err := h.products.Get(ctx, tc, *req.ProductID)
		if err != nil {
			h.Error(c, err)
			return
		}
		factor, err = h.units.Factor(ctx, tc, p.ID, req.PackUnit, p.BaseUnit)
		if err != nil {
			h.Error(c, err)
			return
		}
	}

	unit := pricing.UnitPricing(pricing.PackInput{
		PackCost:      req.PackCost,
		PackSalePrice: req.PackSalePrice,
		Factor:        factor,
		MRP:           req.MRP,
	})
	resp := dto.UnitPricingResponse{UnitPrice: unit, Factor: factor}
	if factor.IsPositive() {
		mrp := decimal.NullDecimal{Decimal: unit.UnitMRP, Valid: req.MRP.Valid}
		resp.Violations = h.policy.CheckBatchPrices(unit.UnitCost, unit.UnitSalePrice, mrp).Violations
	}
	h.OK(c, resp)
}
