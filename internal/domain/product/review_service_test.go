package product_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/domain/order"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/domain/user"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
)

func (e *env) user(t *testing.T, email, first, last string) uint {
	t.Helper()
	u := user.User{Email: email, Password: "x", FirstName: first, LastName: last, Role: user.RoleBuyer, IsActive: true}
	require.NoError(t, e.db.Create(&u).Error)
	return u.ID
}

func (e *env) purchase(t *testing.T, userID uint, p *product.Product, status order.Status) {
	t.Helper()
	o := order.Order{
		OrderNumber: order.NewOrderNumber(p.CreatedAt),
		UserID:      userID,
		Status:      status,
		TotalAmount: p.Price,
		Items:       []order.OrderItem{{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: 1}},
	}
	require.NoError(t, e.db.Create(&o).Error)
}

func (e *env) rating(t *testing.T, id uint) (float64, int) {
	t.Helper()
	var p product.Product
	require.NoError(t, e.db.Unscoped().First(&p, id).Error)
	return p.AverageRating, p.ReviewCount
}

func TestReviews_RatingIsRecomputed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.create(t, "Atlas", "10.00", 5)
	ann := e.user(t, "ann@example.com", "Ann", "Lee")
	bob := e.user(t, "bob@example.com", "Bob", "")
	cat := e.user(t, "cat@example.com", "Cat", "Ng")

	r1, err := e.reviews.CreateReview(ctx, ann, &product.CreateReviewRequest{ProductID: p.ID, Rating: 5, Comment: " great "})
	require.NoError(t, err)
	assert.Equal(t, "great", r1.Comment)
	assert.Equal(t, "Ann L.", r1.AuthorName)
	assert.Equal(t, "Atlas", r1.ProductName)

	_, err = e.reviews.CreateReview(ctx, bob, &product.CreateReviewRequest{ProductID: p.ID, Rating: 4})
	require.NoError(t, err)
	r3, err := e.reviews.CreateReview(ctx, cat, &product.CreateReviewRequest{ProductID: p.ID, Rating: 4})
	require.NoError(t, err)

	avg, count := e.rating(t, p.ID)
	assert.Equal(t, 4.3, avg)
	assert.Equal(t, 3, count)

	one := 1
	_, err = e.reviews.UpdateReview(ctx, r3.ID, cat, &product.UpdateReviewRequest{Rating: &one})
	require.NoError(t, err)
	avg, _ = e.rating(t, p.ID)
	assert.Equal(t, 3.3, avg)

	require.NoError(t, e.reviews.DeleteReview(ctx, r1.ID, ann))
	avg, count = e.rating(t, p.ID)
	assert.Equal(t, 2.5, avg)
	assert.Equal(t, 2, count)

	require.NoError(t, e.reviews.DeleteReview(ctx, r3.ID, cat))
	avg, count = e.rating(t, p.ID)
	assert.Equal(t, 4.0, avg)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, e.reviews.DeleteReview(ctx, r3.ID, cat), product.ErrReviewNotFound)
}

func TestReviews_OnlyAuthorMayChangeOrDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.create(t, "Atlas", "10.00", 5)
	ann := e.user(t, "ann@example.com", "Ann", "Lee")
	bob := e.user(t, "bob@example.com", "Bob", "")

	r, err := e.reviews.CreateReview(ctx, ann, &product.CreateReviewRequest{ProductID: p.ID, Rating: 5})
	require.NoError(t, err)

	one := 1
	_, err = e.reviews.UpdateReview(ctx, r.ID, bob, &product.UpdateReviewRequest{Rating: &one})
	assert.ErrorIs(t, err, product.ErrReviewNotFound)
	assert.ErrorIs(t, e.reviews.DeleteReview(ctx, r.ID, bob), product.ErrReviewNotFound)
	// admins hold no exemption either
	assert.ErrorIs(t, e.reviews.DeleteReview(ctx, r.ID, admin), product.ErrReviewNotFound)

	kept, err := e.reviews.GetReview(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, kept.Rating)
	avg, count := e.rating(t, p.ID)
	assert.Equal(t, 5.0, avg)
	assert.Equal(t, 1, count)
}

func TestReviews_DuplicateAndValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.create(t, "Atlas", "10.00", 5)
	ann := e.user(t, "ann@example.com", "Ann", "Lee")

	_, err := e.reviews.CreateReview(ctx, ann, &product.CreateReviewRequest{ProductID: p.ID, Rating: 3})
	require.NoError(t, err)
	_, err = e.reviews.CreateReview(ctx, ann, &product.CreateReviewRequest{ProductID: p.ID, Rating: 4})
	assert.ErrorIs(t, err, product.ErrAlreadyReviewed)

	_, err = e.reviews.CreateReview(ctx, ann, &product.CreateReviewRequest{ProductID: 999, Rating: 4})
	assert.ErrorIs(t, err, product.ErrProductNotFound)

	_, err = e.reviews.CreateReview(ctx, ann, &product.CreateReviewRequest{ProductID: p.ID, Rating: 6})
	assert.True(t, apperrors.IsValidation(err))

	long := make([]rune, 501)
	for i := range long {
		long[i] = 'x'
	}
	other := e.create(t, "Globe", "10.00", 5)
	_, err = e.reviews.CreateReview(ctx, ann, &product.CreateReviewRequest{ProductID: other.ID, Rating: 4, Comment: string(long)})
	assert.True(t, apperrors.IsValidation(err))

	_, count := e.rating(t, p.ID)
	assert.Equal(t, 1, count)
}

func TestReviews_VerifiedPurchase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.create(t, "Atlas", "10.00", 5)
	delivered := e.user(t, "a@example.com", "A", "")
	pending := e.user(t, "b@example.com", "B", "")
	e.purchase(t, delivered, p, order.StatusDelivered)
	e.purchase(t, pending, p, order.StatusPending)

	r, err := e.reviews.CreateReview(ctx, delivered, &product.CreateReviewRequest{ProductID: p.ID, Rating: 5})
	require.NoError(t, err)
	assert.True(t, r.Verified)

	r, err = e.reviews.CreateReview(ctx, pending, &product.CreateReviewRequest{ProductID: p.ID, Rating: 2})
	require.NoError(t, err)
	assert.False(t, r.Verified)

	list, err := e.reviews.GetProductReviews(ctx, p.ID, &product.ReviewListRequest{SortBy: "rating", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, list.Reviews, 2)
	assert.Equal(t, 2, list.Reviews[0].Rating)
	require.NotNil(t, list.Summary)
	assert.EqualValues(t, 2, list.Summary.TotalReviews)
	assert.EqualValues(t, 1, list.Summary.VerifiedReviews)
	assert.EqualValues(t, 1, list.Summary.RatingBreakdown[5])
	assert.Equal(t, 3.5, list.Summary.AverageRating)

	verified := true
	list, err = e.reviews.GetProductReviews(ctx, p.ID, &product.ReviewListRequest{Verified: &verified})
	require.NoError(t, err)
	assert.Len(t, list.Reviews, 1)

	mine, err := e.reviews.GetUserReviews(ctx, pending, &product.ReviewListRequest{})
	require.NoError(t, err)
	require.Len(t, mine.Reviews, 1)
	assert.Equal(t, "Atlas", mine.Reviews[0].ProductName)
}
