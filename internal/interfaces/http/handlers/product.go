// internal/interfaces/http/handlers/product.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/interfaces/http/middleware"
	"github.com/your-org/marketplace-api/internal/pkg/pagination"
)

// ProductHandler handles catalog endpoints
type ProductHandler struct {
	productService *product.Service
	logger         *logrus.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(productService *product.Service, logger *logrus.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// GetProducts handles GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	var req product.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.productService.GetProducts(c.Request.Context(), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Products retrieved successfully", response)
}

// GetProduct handles GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	p, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Product retrieved successfully", p)
}

// CreateProduct handles POST /products. The caller becomes the seller.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req product.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, err := h.productService.CreateProduct(c.Request.Context(), sellerID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Product created successfully", p)
}

// UpdateProduct handles PUT /products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, err := h.productService.UpdateProduct(c.Request.Context(), actorID, middleware.IsAdminFromContext(c), id, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Product updated successfully", p)
}

// DeleteProduct handles DELETE /products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), actorID, middleware.IsAdminFromContext(c), id); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Product deleted successfully", nil)
}

// UpdateStock handles PUT /products/:id/stock
func (h *ProductHandler) UpdateStock(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.StockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, err := h.productService.UpdateStock(c.Request.Context(), actorID, middleware.IsAdminFromContext(c), id, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Stock updated successfully", p)
}

// GetMovements handles GET /products/:id/movements
func (h *ProductHandler) GetMovements(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var params pagination.Params
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	movements, err := h.productService.GetMovements(c.Request.Context(), actorID, middleware.IsAdminFromContext(c), id, params)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Stock movements retrieved successfully", movements)
}
