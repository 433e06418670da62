// internal/domain/product/review_dto.go
package product

import (
	"time"

	"github.com/your-org/marketplace-api/internal/pkg/pagination"
)

// CreateReviewRequest represents the request to create a review
type CreateReviewRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment" binding:"max=500"`
}

// UpdateReviewRequest represents the request to update a review
type UpdateReviewRequest struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" binding:"omitempty,max=500"`
}

// ReviewListRequest represents review list query parameters
type ReviewListRequest struct {
	pagination.Params
	Rating    int    `form:"rating" binding:"omitempty,min=1,max=5"`
	Verified  *bool  `form:"verified"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// ReviewResponse is a review with its author and product names
type ReviewResponse struct {
	ID          uint      `json:"id"`
	ProductID   uint      `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	UserID      uint      `json:"user_id"`
	AuthorName  string    `json:"author_name"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReviewSummary aggregates a product's ratings
type ReviewSummary struct {
	AverageRating   float64       `json:"average_rating"`
	TotalReviews    int64         `json:"total_reviews"`
	VerifiedReviews int64         `json:"verified_reviews"`
	RatingBreakdown map[int]int64 `json:"rating_breakdown"`
}

// ReviewListResponse is a page of reviews
type ReviewListResponse struct {
	Reviews    []ReviewResponse `json:"reviews"`
	Pagination pagination.Meta  `json:"pagination"`
	Summary    *ReviewSummary   `json:"summary,omitempty"`
}

type reviewRow struct {
	Review
	ProductName string
	FirstName   string
	LastName    string
}

func (r *reviewRow) toResponse() ReviewResponse {
	author := r.FirstName
	if initial := []rune(r.LastName); len(initial) > 0 {
		author += " " + string(initial[0]) + "."
	}
	return ReviewResponse{
		ID:          r.ID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		UserID:      r.UserID,
		AuthorName:  author,
		Rating:      r.Rating,
		Comment:     r.Comment,
		Verified:    r.Verified,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
