package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/services"
)

// ProductHandlers serves the catalog
type ProductHandlers struct {
	responder
	products *services.ProductService
}

// NewProductHandlers creates the product handler group
func NewProductHandlers(products *services.ProductService, log *logrus.Logger, debug bool) *ProductHandlers {
	return &ProductHandlers{responder: responder{log: log, debug: debug}, products: products}
}

// GetProducts pages through products, optionally within ?category=.
func (h *ProductHandlers) GetProducts(c *gin.Context) {
	page, limit := pagination(c)
	result, err := h.products.List(c.Request.Context(), c.Query("category"), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"products":   result.Products,
		"total":      result.Total,
		"page":       result.Page,
		"totalPages": result.TotalPages,
	})
}

// GetProduct returns one product.
func (h *ProductHandlers) GetProduct(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

// CreateProduct adds a catalog entry; the discounted price is derived.
func (h *ProductHandlers) CreateProduct(c *gin.Context) {
	var req services.CreateProductInput
	if !h.bindJSON(c, &req) {
		return
	}
	product, err := h.products.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "product": product})
}

// GetFeatured lists featured products in display order.
func (h *ProductHandlers) GetFeatured(c *gin.Context) {
	products, err := h.products.Featured(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

// GetCategories lists categories with their subcategories.
func (h *ProductHandlers) GetCategories(c *gin.Context) {
	categories, err := h.products.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": categories})
}
