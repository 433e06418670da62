package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
	"github.com/your-org/marketplace-api/internal/testutil"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *product.Category) {
	t.Helper()
	db := testutil.NewDB(t, &product.Category{}, &product.Product{}, &Cart{}, &CartItem{})
	category := &product.Category{Name: "Toys"}
	require.NoError(t, db.Create(category).Error)
	return NewService(db, NewStore(), product.NewStore(), logger.Discard()), db, category
}

func seedProduct(t *testing.T, db *gorm.DB, categoryID uint, name, price string, qty int) *product.Product {
	t.Helper()
	p := &product.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		CategoryID: categoryID,
		SellerID:   5,
		InStock:    true,
		Quantity:   qty,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestGetCart_CreatesLazily(t *testing.T) {
	s, db, _ := newTestService(t)
	ctx := context.Background()

	resp, err := s.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), resp.UserID)
	assert.Empty(t, resp.Items)
	assert.True(t, resp.Totals.SubTotal.IsZero())

	again, err := s.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, again.ID)

	var carts int64
	require.NoError(t, db.Model(&Cart{}).Count(&carts).Error)
	assert.EqualValues(t, 1, carts)
}

func TestAddItem_MergesAndKeepsOrder(t *testing.T) {
	s, db, category := newTestService(t)
	ctx := context.Background()
	car := seedProduct(t, db, category.ID, "Car", "2.50", 10)
	kite := seedProduct(t, db, category.ID, "Kite", "7.00", 10)

	_, err := s.AddItem(ctx, 1, &AddItemRequest{ProductID: kite.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = s.AddItem(ctx, 1, &AddItemRequest{ProductID: car.ID, Quantity: 2})
	require.NoError(t, err)
	resp, err := s.AddItem(ctx, 1, &AddItemRequest{ProductID: kite.ID, Quantity: 2})
	require.NoError(t, err)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, kite.ID, resp.Items[0].ProductID)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.Equal(t, car.ID, resp.Items[1].ProductID)
	require.NotNil(t, resp.Items[0].Product)
	assert.Equal(t, "Kite", resp.Items[0].Product.Name)
	assert.Len(t, resp.Items[0].ID, 36)

	assert.Equal(t, 2, resp.Totals.ItemCount)
	assert.Equal(t, 5, resp.Totals.TotalQuantity)
	assert.True(t, decimal.RequireFromString("26.00").Equal(resp.Totals.SubTotal), resp.Totals.SubTotal.String())
}

func TestAddItem_Rejections(t *testing.T) {
	s, db, category := newTestService(t)
	ctx := context.Background()
	car := seedProduct(t, db, category.ID, "Car", "2.50", 2)

	_, err := s.AddItem(ctx, 1, &AddItemRequest{ProductID: 404, Quantity: 1})
	assert.ErrorIs(t, err, product.ErrProductNotFound)

	_, err = s.AddItem(ctx, 1, &AddItemRequest{ProductID: car.ID, Quantity: 0})
	assert.True(t, apperrors.IsValidation(err))

	_, err = s.AddItem(ctx, 1, &AddItemRequest{ProductID: car.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = s.AddItem(ctx, 1, &AddItemRequest{ProductID: car.ID, Quantity: 1})
	var shortage *InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, 2, shortage.Available)

	require.NoError(t, db.Model(car).Update("in_stock", false).Error)
	_, err = s.AddItem(ctx, 2, &AddItemRequest{ProductID: car.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductInactive)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	s, db, category := newTestService(t)
	ctx := context.Background()
	car := seedProduct(t, db, category.ID, "Car", "2.50", 5)

	resp, err := s.AddItem(ctx, 1, &AddItemRequest{ProductID: car.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := resp.Items[0].ID

	resp, err = s.UpdateItem(ctx, 1, itemID, &UpdateItemRequest{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Items[0].Quantity)

	_, err = s.UpdateItem(ctx, 1, itemID, &UpdateItemRequest{Quantity: 6})
	var shortage *InsufficientStockError
	assert.ErrorAs(t, err, &shortage)

	// another user cannot see the item
	_, err = s.UpdateItem(ctx, 2, itemID, &UpdateItemRequest{Quantity: 1})
	assert.ErrorIs(t, err, ErrCartItemNotFound)
	_, err = s.RemoveItem(ctx, 2, itemID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)

	resp, err = s.RemoveItem(ctx, 1, itemID)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestClearCart(t *testing.T) {
	s, db, category := newTestService(t)
	ctx := context.Background()
	car := seedProduct(t, db, category.ID, "Car", "2.50", 5)

	require.NoError(t, s.ClearCart(ctx, 1))

	_, err := s.AddItem(ctx, 1, &AddItemRequest{ProductID: car.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, s.ClearCart(ctx, 1))

	c, err := NewStore().FindByUser(db, 1)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestGetCart_DeletedProductKeepsLine(t *testing.T) {
	s, db, category := newTestService(t)
	ctx := context.Background()
	car := seedProduct(t, db, category.ID, "Car", "2.50", 5)

	_, err := s.AddItem(ctx, 1, &AddItemRequest{ProductID: car.ID, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, db.Delete(car).Error)

	resp, err := s.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Nil(t, resp.Items[0].Product)
	assert.True(t, resp.Totals.SubTotal.IsZero())
}

func TestAddItem_RetriesWhenConcurrentAddWinsInsert(t *testing.T) {
	s, db, category := newTestService(t)
	ctx := context.Background()
	kite := seedProduct(t, db, category.ID, "Kite", "7.00", 10)

	cart, err := s.store.FindOrCreate(db, 1)
	require.NoError(t, err)

	// the first insert races a line for the same product into the table
	raced := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:racing_add", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*CartItem); !ok || raced > 0 {
			return
		}
		raced++
		now := time.Now()
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO cart_items (id, cart_id, product_id, quantity, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			uuid.NewString(), cart.ID, kite.ID, 1, 0, now, now,
		)
	}))

	resp, err := s.AddItem(ctx, 1, &AddItemRequest{ProductID: kite.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, raced)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, kite.ID, resp.Items[0].ProductID)
	assert.Equal(t, 2, resp.Items[0].Quantity)

	var lines int64
	require.NoError(t, db.Model(&CartItem{}).Where("cart_id = ?", cart.ID).Count(&lines).Error)
	assert.EqualValues(t, 1, lines)
}
