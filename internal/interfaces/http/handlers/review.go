// internal/interfaces/http/handlers/review.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/product"
)

// ReviewHandler handles review endpoints
type ReviewHandler struct {
	reviewService *product.ReviewService
	logger        *logrus.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *product.ReviewService, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger,
	}
}

// GetProductReviews handles GET /products/:id/reviews
func (h *ReviewHandler) GetProductReviews(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.ReviewListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.reviewService.GetProductReviews(c.Request.Context(), productID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Reviews retrieved successfully", response)
}

// CreateReview handles POST /reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req product.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Review created successfully", review)
}

// GetMyReviews handles GET /reviews/me
func (h *ReviewHandler) GetMyReviews(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req product.ReviewListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.reviewService.GetUserReviews(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Reviews retrieved successfully", response)
}

// UpdateReview handles PUT /reviews/:id
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	reviewID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req product.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	review, err := h.reviewService.UpdateReview(c.Request.Context(), reviewID, userID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Review updated successfully", review)
}

// DeleteReview handles DELETE /reviews/:id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	reviewID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.reviewService.DeleteReview(c.Request.Context(), reviewID, userID); err != nil {
		handleError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Review deleted successfully", nil)
}
