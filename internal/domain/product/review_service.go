// internal/domain/product/review_service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
	"github.com/your-org/marketplace-api/internal/pkg/pagination"
	"gorm.io/gorm"
)

// Order statuses that make a review a verified purchase
var verifiedPurchaseStatuses = []string{"confirmed", "delivered"}

// ReviewService handles review business logic
type ReviewService struct {
	db     *gorm.DB
	store  *Store
	logger *logrus.Logger
}

// NewReviewService creates a new review service
func NewReviewService(db *gorm.DB, store *Store, logger *logrus.Logger) *ReviewService {
	return &ReviewService{
		db:     db,
		store:  store,
		logger: logger,
	}
}

// CreateReview creates a review and recomputes the product rating
func (s *ReviewService) CreateReview(ctx context.Context, userID uint, req *CreateReviewRequest) (*ReviewResponse, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.Validation("rating", "must be between 1 and 5")
	}
	comment := strings.TrimSpace(req.Comment)
	if len([]rune(comment)) > 500 {
		return nil, apperrors.Validation("comment", "must be at most 500 characters")
	}

	var reviewID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the product lock serializes rating recomputes
		if _, err := s.store.FindByIDForUpdate(tx, req.ProductID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&Review{}).Where("user_id = ? AND product_id = ?", userID, req.ProductID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check existing review: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyReviewed
		}

		verified, err := s.hasPurchased(tx, userID, req.ProductID)
		if err != nil {
			return err
		}

		review := Review{
			UserID:    userID,
			ProductID: req.ProductID,
			Rating:    req.Rating,
			Comment:   comment,
			Verified:  verified,
		}
		if err := tx.Create(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("failed to create review: %w", err)
		}
		reviewID = review.ID

		return s.recomputeRating(tx, req.ProductID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"review_id":  reviewID,
		"product_id": req.ProductID,
		"user_id":    userID,
	}).Info("Review created")

	return s.GetReview(ctx, reviewID)
}

// GetReview retrieves a single review by ID
func (s *ReviewService) GetReview(ctx context.Context, reviewID uint) (*ReviewResponse, error) {
	var row reviewRow
	result := s.listQuery(ctx).Select(reviewColumns).Where("reviews.id = ?", reviewID).Limit(1).Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve review: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrReviewNotFound
	}
	resp := row.toResponse()
	return &resp, nil
}

// UpdateReview updates the caller's own review
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, userID uint, req *UpdateReviewRequest) (*ReviewResponse, error) {
	updates := make(map[string]interface{})
	if req.Rating != nil {
		if *req.Rating < 1 || *req.Rating > 5 {
			return nil, apperrors.Validation("rating", "must be between 1 and 5")
		}
		updates["rating"] = *req.Rating
	}
	if req.Comment != nil {
		comment := strings.TrimSpace(*req.Comment)
		if len([]rune(comment)) > 500 {
			return nil, apperrors.Validation("comment", "must be at most 500 characters")
		}
		updates["comment"] = comment
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := s.findOwnReview(tx, reviewID, userID)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if _, err := s.store.FindByIDForUpdate(tx, review.ProductID); err != nil {
			return err
		}
		if err := tx.Model(review).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update review: %w", err)
		}
		return s.recomputeRating(tx, review.ProductID)
	})
	if err != nil {
		return nil, err
	}

	return s.GetReview(ctx, reviewID)
}

// DeleteReview deletes the caller's own review
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := s.findOwnReview(tx, reviewID, userID)
		if err != nil {
			return err
		}
		if err := tx.Delete(review).Error; err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}
		// the product may be soft deleted; its rating is still kept current
		return s.recomputeRating(tx, review.ProductID)
	})
}

// GetProductReviews lists a product's reviews with a rating summary
func (s *ReviewService) GetProductReviews(ctx context.Context, productID uint, req *ReviewListRequest) (*ReviewListResponse, error) {
	if _, err := s.store.FindByID(s.db.WithContext(ctx), productID); err != nil {
		return nil, err
	}

	query := s.listQuery(ctx).Where("reviews.product_id = ?", productID)
	if req.Rating > 0 {
		query = query.Where("reviews.rating = ?", req.Rating)
	}
	if req.Verified != nil {
		query = query.Where("reviews.verified = ?", *req.Verified)
	}

	resp, err := s.page(query, req)
	if err != nil {
		return nil, err
	}

	summary, err := s.GetReviewSummary(ctx, productID)
	if err != nil {
		return nil, err
	}
	resp.Summary = summary
	return resp, nil
}

// GetUserReviews lists the reviews written by a user
func (s *ReviewService) GetUserReviews(ctx context.Context, userID uint, req *ReviewListRequest) (*ReviewListResponse, error) {
	return s.page(s.listQuery(ctx).Where("reviews.user_id = ?", userID), req)
}

// GetReviewSummary aggregates the ratings of a product
func (s *ReviewService) GetReviewSummary(ctx context.Context, productID uint) (*ReviewSummary, error) {
	var rows []struct {
		Rating   int
		Verified bool
		Count    int64
	}
	err := s.db.WithContext(ctx).Model(&Review{}).
		Select("rating, verified, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Group("rating, verified").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reviews: %w", err)
	}

	summary := &ReviewSummary{RatingBreakdown: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	var sum int64
	for _, r := range rows {
		summary.RatingBreakdown[r.Rating] += r.Count
		summary.TotalReviews += r.Count
		if r.Verified {
			summary.VerifiedReviews += r.Count
		}
		sum += int64(r.Rating) * r.Count
	}
	if summary.TotalReviews > 0 {
		summary.AverageRating = roundRating(float64(sum) / float64(summary.TotalReviews))
	}
	return summary, nil
}

func (s *ReviewService) page(query *gorm.DB, req *ReviewListRequest) (*ReviewListResponse, error) {
	params := req.Params.Normalize(20, 100)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	var rows []reviewRow
	err := query.Select(reviewColumns).
		Order(reviewOrderClause(req.SortBy, req.SortOrder)).
		Offset(params.Offset()).
		Limit(params.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve reviews: %w", err)
	}

	reviews := make([]ReviewResponse, len(rows))
	for i := range rows {
		reviews[i] = rows[i].toResponse()
	}
	return &ReviewListResponse{Reviews: reviews, Pagination: pagination.NewMeta(params, total)}, nil
}

const reviewColumns = "reviews.*, products.name AS product_name, users.first_name, users.last_name"

func (s *ReviewService) listQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("reviews").
		Joins("LEFT JOIN products ON products.id = reviews.product_id").
		Joins("LEFT JOIN users ON users.id = reviews.user_id")
}

// findOwnReview looks a review up by id and author; other users' reviews
// are reported as missing
func (s *ReviewService) findOwnReview(tx *gorm.DB, id, userID uint) (*Review, error) {
	var review Review
	if err := tx.Where("user_id = ?", userID).First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}
	return &review, nil
}

func (s *ReviewService) hasPurchased(tx *gorm.DB, userID, productID uint) (bool, error) {
	var count int64
	err := tx.Raw(`
		SELECT COUNT(*) FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = ? AND oi.product_id = ? AND o.status IN ?
	`, userID, productID, verifiedPurchaseStatuses).Scan(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}
	return count > 0, nil
}

// recomputeRating rebuilds average and count from every review of the product
func (s *ReviewService) recomputeRating(tx *gorm.DB, productID uint) error {
	var agg struct {
		Count   int64
		Average float64
	}
	err := tx.Model(&Review{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS average").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	err = tx.Unscoped().Model(&Product{}).Where("id = ?", productID).UpdateColumns(map[string]interface{}{
		"average_rating": roundRating(agg.Average),
		"review_count":   agg.Count,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update product rating: %w", err)
	}
	return nil
}

func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

func reviewOrderClause(sortBy, sortOrder string) string {
	column := "reviews.created_at"
	if sortBy == "rating" {
		column = "reviews.rating"
	}
	if strings.ToLower(sortOrder) != "asc" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}
	return fmt.Sprintf("%s %s, reviews.id %s", column, sortOrder, sortOrder)
}
