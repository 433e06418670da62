package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/domain/inventory"
	"github.com/your-org/marketplace-api/internal/domain/notification"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
	"github.com/your-org/marketplace-api/internal/pkg/pagination"
	"github.com/your-org/marketplace-api/internal/testutil"
)

const buyer uint = 1

func TestCreateOrder_TwoLines(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "10.00", 5)
	b := f.product("B", "5.00", 1)
	f.addToCart(buyer, a, 2)
	f.addToCart(buyer, b, 1)

	order, err := f.place(buyer)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("25.00").Equal(order.TotalAmount), "total %s", order.TotalAmount)
	assert.Equal(t, StatusPending, order.Status)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "A", order.Items[0].Name)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "B", order.Items[1].Name)
	assert.Equal(t, 3, f.stock(a.ID))
	assert.Equal(t, 0, f.stock(b.ID))
	assert.Equal(t, 0, f.cartSize(buyer))
	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, StatusPending, order.StatusHistory[0].ToStatus)

	var movements []inventory.Movement
	require.NoError(t, f.db.Where("reference_id = ?", order.ID).Order("id").Find(&movements).Error)
	require.Len(t, movements, 2)
	assert.Equal(t, inventory.MovementTypeOutbound, movements[0].MovementType)
	assert.Equal(t, -2, movements[0].Delta())

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, notification.KindOrderConfirmed, events[0].kind)
	assert.Equal(t, order.OrderNumber, events[0].order.OrderNumber)
}

func TestCreateOrder_InsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "10.00", 1)
	f.addToCart(buyer, a, 2)

	_, err := f.place(buyer)

	var shortage *InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, "A", shortage.ProductName)
	assert.Equal(t, "Insufficient stock for A", err.Error())
	assert.Equal(t, 1, f.stock(a.ID))
	assert.Equal(t, 1, f.cartSize(buyer))
	assert.Zero(t, f.orderCount())
	assert.Empty(t, f.notifier.all())
}

func TestCreateOrder_LaterShortageRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "3.50", 10)
	b := f.product("B", "1.00", 0)
	f.addToCart(buyer, a, 4)
	f.addToCart(buyer, b, 1)

	_, err := f.place(buyer)

	var shortage *InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, "B", shortage.ProductName)
	assert.Equal(t, 10, f.stock(a.ID))
	assert.Equal(t, 2, f.cartSize(buyer))

	var movements int64
	require.NoError(t, f.db.Model(&inventory.Movement{}).Count(&movements).Error)
	assert.Zero(t, movements)
}

func TestCreateOrder_OutOfStockFlagCountsAsShortage(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "3.50", 10)
	f.addToCart(buyer, a, 1)
	require.NoError(t, f.db.Model(a).Update("in_stock", false).Error)

	_, err := f.place(buyer)

	var shortage *InsufficientStockError
	assert.ErrorAs(t, err, &shortage)
	assert.Equal(t, 10, f.stock(a.ID))
}

func TestCreateOrder_MissingProduct(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "3.50", 10)
	f.addToCart(buyer, a, 1)
	require.NoError(t, f.db.Delete(a).Error)

	_, err := f.place(buyer)

	var missing *ProductNotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, a.ID, missing.ProductID)
	assert.Equal(t, 1, f.cartSize(buyer))
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.place(buyer)
	assert.ErrorIs(t, err, ErrCartEmpty)

	a := f.product("A", "1.00", 1)
	f.addToCart(buyer, a, 1)
	_, err = f.place(buyer)
	require.NoError(t, err)

	// the cart row survives and is now empty
	_, err = f.place(buyer)
	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Equal(t, 1, f.orderCount())
}

func TestCreateOrder_AddressValidation(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "1.00", 1)
	f.addToCart(buyer, a, 1)

	addr := testAddress()
	addr.City = "   "
	_, err := f.service.CreateOrder(context.Background(), buyer, &CreateOrderRequest{ShippingAddress: addr})

	var invalid *apperrors.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "shipping_address.city", invalid.Field)
	assert.Equal(t, 1, f.stock(a.ID))
}

func TestCreateOrder_ConcurrentBuyersCannotOversell(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "9.99", 1)
	f.addToCart(1, a, 1)
	f.addToCart(2, a, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.place(uint(i + 1))
		}(i)
	}
	wg.Wait()

	succeeded, short := 0, 0
	for _, err := range errs {
		var shortage *InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &shortage):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, f.stock(a.ID))
	assert.Equal(t, 1, f.orderCount())
}

func TestCancelOrder_RestocksOnce(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "2.00", 5)
	f.addToCart(buyer, a, 3)
	order, err := f.place(buyer)
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(a.ID))

	cancelled, err := f.service.CancelOrder(context.Background(), order.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Len(t, cancelled.StatusHistory, 2)
	assert.Equal(t, 5, f.stock(a.ID))

	_, err = f.service.CancelOrder(context.Background(), order.ID, buyer)
	assert.ErrorIs(t, err, ErrOrderNotCancellable)
	assert.Equal(t, 5, f.stock(a.ID))

	net, err := inventory.NewLedger(f.db).NetChange(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Zero(t, net)

	events := f.notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, notification.KindOrderStatusChanged, events[1].kind)
	assert.Equal(t, "cancelled", events[1].order.Status)
	assert.Equal(t, "pending", events[1].order.PreviousStatus)
}

func TestCancelOrder_OtherUsersOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "2.00", 5)
	f.addToCart(buyer, a, 1)
	order, err := f.place(buyer)
	require.NoError(t, err)

	_, err = f.service.CancelOrder(context.Background(), order.ID, 2)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 4, f.stock(a.ID))

	_, err = f.service.CancelOrder(context.Background(), 12345, buyer)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrder_ShippedOrderIsUntouched(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "2.00", 5)
	f.addToCart(buyer, a, 2)
	order, err := f.place(buyer)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "confirmed"})
	require.NoError(t, err)
	_, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "shipped"})
	require.NoError(t, err)

	_, err = f.service.CancelOrder(ctx, order.ID, buyer)
	assert.ErrorIs(t, err, ErrOrderNotCancellable)

	stored, err := f.service.GetOrder(ctx, order.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, stored.Status)
	assert.Equal(t, 3, f.stock(a.ID))
}

func TestCancelOrder_RestocksSoftDeletedProduct(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "2.00", 5)
	f.addToCart(buyer, a, 2)
	order, err := f.place(buyer)
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(a).Error)

	_, err = f.service.CancelOrder(context.Background(), order.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(a.ID))
}

func TestUpdateStatus_StrictGraph(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "2.00", 5)
	f.addToCart(buyer, a, 1)
	order, err := f.place(buyer)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "shipped"})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusPending, invalid.From)
	assert.Equal(t, StatusShipped, invalid.To)

	_, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "teleported"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	for _, next := range []string{"confirmed", "shipped", "delivered"} {
		updated, err := f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: next, Note: "moving on"})
		require.NoError(t, err)
		assert.Equal(t, Status(next), updated.Status)
	}

	stored, err := f.service.GetOrderForStaff(ctx, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ConfirmedAt)
	assert.NotNil(t, stored.ShippedAt)
	assert.NotNil(t, stored.DeliveredAt)
	require.Len(t, stored.StatusHistory, 4)
	assert.Equal(t, StatusShipped, stored.StatusHistory[3].FromStatus)
	assert.Equal(t, uint(50), stored.StatusHistory[3].ChangedBy)

	_, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "pending"})
	assert.ErrorAs(t, err, &invalid)

	// creation plus three transitions
	assert.Len(t, f.notifier.all(), 4)
}

func TestUpdateStatus_CancelTakesRestockPath(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "2.00", 5)
	f.addToCart(buyer, a, 2)
	order, err := f.place(buyer)
	require.NoError(t, err)

	updated, err := f.service.UpdateStatus(context.Background(), order.ID, 50, &UpdateStatusRequest{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 5, f.stock(a.ID))
}

func TestUpdateStatus_PermissiveMode(t *testing.T) {
	cfg := testutil.Config()
	cfg.Orders.StrictTransitions = false
	f := newFixtureWithConfig(t, cfg)
	a := f.product("A", "2.00", 5)
	f.addToCart(buyer, a, 2)
	order, err := f.place(buyer)
	require.NoError(t, err)
	ctx := context.Background()

	updated, err := f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "delivered"})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)

	updated, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)

	// cancellation is still guarded and restocks
	_, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(a.ID))

	var invalid *InvalidTransitionError
	_, err = f.service.UpdateStatus(ctx, order.ID, 50, &UpdateStatusRequest{Status: "confirmed"})
	assert.ErrorAs(t, err, &invalid)
}

func TestListOrders_NewestFirstAndScoped(t *testing.T) {
	f := newFixture(t)
	a := f.product("A", "1.00", 10)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		f.addToCart(buyer, a, 1)
		order, err := f.place(buyer)
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}
	f.addToCart(2, a, 1)
	other, err := f.place(2)
	require.NoError(t, err)

	list, err := f.service.ListOrders(ctx, buyer, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.TotalPages)
	require.Len(t, list.Orders, 2)
	assert.Equal(t, ids[2], list.Orders[0].ID)
	assert.Equal(t, ids[1], list.Orders[1].ID)

	_, err = f.service.GetOrder(ctx, other.ID, buyer)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	all, err := f.service.ListAllOrders(ctx, &ListRequest{Status: "pending"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Pagination.Total)

	_, err = f.service.ListAllOrders(ctx, &ListRequest{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
