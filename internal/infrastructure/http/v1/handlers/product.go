// Package handlers provides HTTP request handlers.
package handlers

import (
	"github.com/gin-gonic/gin"

	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/infrastructure/http/v1/dto"
)

// ProductHandler serves the product catalog and its unit conversions.
type ProductHandler struct {
	*BaseHandler
	products *product.Service
	units    *uom.Engine
}

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, products *product.Service, units *uom.Engine) *ProductHandler {
	return &ProductHandler{BaseHandler: base, products: products, units: units}
}

// RegisterRoutes mounts the product routes on rg.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/conversions", h.ListConversions)
	rg.POST("/:id/conversions", h.DeclareConversion)
	rg.POST("/:id/convert", h.Convert)
}

// Create registers a product.
// POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.products.Create(c.Request.Context(), tc, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get returns one product.
// GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.products.Get(c.Request.Context(), tc, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// List returns a page of products.
// GET /products
func (h *ProductHandler) List(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.products.List(c.Request.Context(), tc, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result, func(p *product.Product) *product.Product { return p }))
}

// DeclareConversion records "1 from = factor to" for a product.
// POST /products/:id/conversions
func (h *ProductHandler) DeclareConversion(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DeclareConversionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	conv, err := h.units.Declare(c.Request.Context(), tc, productID, req.FromUnit, req.ToUnit, req.Factor)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, conv)
}

// ListConversions returns the conversions declared for a product.
// GET /products/:id/conversions
func (h *ProductHandler) ListConversions(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	convs, err := h.units.ListForProduct(c.Request.Context(), tc, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if convs == nil {
		convs = []*uom.Conversion{}
	}
	h.OK(c, convs)
}

// Convert converts a quantity between two units of a product.
// POST /products/:id/convert
func (h *ProductHandler) Convert(c *gin.Context) {
	tc, ok := h.Caller(c)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ConvertRequest
	if !h.BindJSON(c, &req) {
		return
	}

	factor, err := h.units.Factor(c.Request.Context(), tc, productID, req.FromUnit, req.ToUnit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ConvertResponse{
		FromUnit: req.FromUnit,
		ToUnit:   req.ToUnit,
		Quantity: req.Quantity,
		Result:   req.Quantity.Mul(factor),
		Factor:   factor,
	})
}
