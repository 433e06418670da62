package order

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/domain/cart"
	"github.com/your-org/marketplace-api/internal/domain/inventory"
	"github.com/your-org/marketplace-api/internal/domain/notification"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
	"github.com/your-org/marketplace-api/internal/testutil"
	"gorm.io/gorm"
)

var models = []interface{}{
	&product.Category{},
	&product.Product{},
	&cart.Cart{},
	&cart.CartItem{},
	&Order{},
	&OrderItem{},
	&StatusHistory{},
	&inventory.Movement{},
}

type recordedEvent struct {
	kind   notification.Kind
	userID uint
	order  notification.OrderSummary
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeNotifier) NotifyOrderConfirmed(userID uint, order notification.OrderSummary) {
	f.record(notification.KindOrderConfirmed, userID, order)
}

func (f *fakeNotifier) NotifyOrderStatusChanged(userID uint, order notification.OrderSummary) {
	f.record(notification.KindOrderStatusChanged, userID, order)
}

func (f *fakeNotifier) record(kind notification.Kind, userID uint, order notification.OrderSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{kind: kind, userID: userID, order: order})
}

func (f *fakeNotifier) all() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedEvent(nil), f.events...)
}

type fixture struct {
	t        testing.TB
	db       *gorm.DB
	cfg      *config.Config
	service  *Service
	notifier *fakeNotifier
	category product.Category
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testutil.Config())
}

func newFixtureWithConfig(t testing.TB, cfg *config.Config) *fixture {
	t.Helper()
	db := testutil.NewDB(t, models...)
	n := &fakeNotifier{}
	f := &fixture{
		t:        t,
		db:       db,
		cfg:      cfg,
		notifier: n,
		category: product.Category{Name: "Electronics"},
	}
	require.NoError(t, db.Create(&f.category).Error)
	f.service = NewService(db, cfg, NewStore(), cart.NewStore(), product.NewStore(), inventory.NewLedger(db), n, logger.Discard())
	return f
}

func (f *fixture) product(name, price string, quantity int) *product.Product {
	f.t.Helper()
	p := &product.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		CategoryID: f.category.ID,
		SellerID:   99,
		InStock:    true,
		Quantity:   quantity,
	}
	require.NoError(f.t, f.db.Create(p).Error)
	return p
}

func (f *fixture) addToCart(userID uint, p *product.Product, quantity int) {
	f.t.Helper()
	c, err := cart.NewStore().FindOrCreate(f.db, userID)
	require.NoError(f.t, err)
	item := cart.CartItem{CartID: c.ID, ProductID: p.ID, Quantity: quantity, Position: len(c.Items)}
	require.NoError(f.t, f.db.Create(&item).Error)
}

func (f *fixture) stock(id uint) int {
	f.t.Helper()
	var p product.Product
	require.NoError(f.t, f.db.Unscoped().First(&p, id).Error)
	return p.Quantity
}

func (f *fixture) cartSize(userID uint) int {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&cart.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Count(&n).Error)
	return int(n)
}

func (f *fixture) orderCount() int {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&Order{}).Count(&n).Error)
	return int(n)
}

func (f *fixture) place(userID uint) (*Order, error) {
	return f.service.CreateOrder(context.Background(), userID, &CreateOrderRequest{ShippingAddress: testAddress()})
}

func testAddress() ShippingAddress {
	return ShippingAddress{
		Street:  "1 Main St",
		City:    "Springfield",
		State:   "IL",
		ZipCode: "62701",
		Country: "US",
	}
}

func (f *fixture) ctx() context.Context {
	return context.Background()
}
