// internal/interfaces/http/handlers/analytics.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/analytics"
)

// AnalyticsHandler serves the catalog and order statistics
type AnalyticsHandler struct {
	analyticsService *analytics.Service
	logger           *logrus.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *analytics.Service, logger *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// GetProductStats handles GET /stats/products
func (h *AnalyticsHandler) GetProductStats(c *gin.Context) {
	stats, err := h.analyticsService.ProductStatsByCategory(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Product statistics retrieved successfully", stats)
}

// GetTopProducts handles GET /stats/top-products?limit=
func (h *AnalyticsHandler) GetTopProducts(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}

	products, err := h.analyticsService.TopProducts(c.Request.Context(), limit)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Top products retrieved successfully", products)
}

// GetLowStock handles GET /stats/low-stock?threshold=
func (h *AnalyticsHandler) GetLowStock(c *gin.Context) {
	threshold, ok := intQuery(c, "threshold", -1)
	if !ok {
		return
	}

	report, err := h.analyticsService.LowStock(c.Request.Context(), threshold)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Low stock report retrieved successfully", report)
}

// GetPriceDistribution handles GET /stats/price-distribution
func (h *AnalyticsHandler) GetPriceDistribution(c *gin.Context) {
	buckets, err := h.analyticsService.PriceDistribution(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Price distribution retrieved successfully", buckets)
}

// GetOrderSummary handles GET /stats/orders
func (h *AnalyticsHandler) GetOrderSummary(c *gin.Context) {
	summary, err := h.analyticsService.OrderSummary(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Order summary retrieved successfully", summary)
}

// ClearCache handles DELETE /stats/cache
func (h *AnalyticsHandler) ClearCache(c *gin.Context) {
	if err := h.analyticsService.Invalidate(c.Request.Context()); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Statistics cache cleared", nil)
}

// intQuery reads an optional integer query parameter, answering 400 when it
// is present but malformed
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return n, true
}
