// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/domain/cart"
	"github.com/your-org/marketplace-api/internal/domain/inventory"
	"github.com/your-org/marketplace-api/internal/domain/notification"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/pkg/pagination"
	"gorm.io/gorm"
)

// Notifier receives post-commit order events. Calls must not block.
type Notifier interface {
	NotifyOrderConfirmed(userID uint, order notification.OrderSummary)
	NotifyOrderStatusChanged(userID uint, order notification.OrderSummary)
}

// Service runs the order workflow
type Service struct {
	db       *gorm.DB
	config   *config.Config
	orders   *Store
	carts    *cart.Store
	products *product.Store
	ledger   *inventory.Ledger
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

// NewService creates a new order service
func NewService(
	db *gorm.DB,
	cfg *config.Config,
	orders *Store,
	carts *cart.Store,
	products *product.Store,
	ledger *inventory.Ledger,
	notifier Notifier,
	logger *logrus.Logger,
) *Service {
	return &Service{
		db:       db,
		config:   cfg,
		orders:   orders,
		carts:    carts,
		products: products,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderRequest represents order creation data
type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" binding:"required"`
}

// UpdateStatusRequest represents a staff status change
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note" binding:"max=500"`
}

// ListRequest represents order list query parameters
type ListRequest struct {
	pagination.Params
	Status string `form:"status"`
	UserID uint   `form:"user_id"`
}

// ListResponse is a page of orders
type ListResponse struct {
	Orders     []Order         `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

// CreateOrder converts the user's cart into a pending order. Stock is taken,
// the order written and the cart emptied in one transaction; any failure
// leaves all three untouched.
func (s *Service) CreateOrder(ctx context.Context, userID uint, req *CreateOrderRequest) (*Order, error) {
	address := req.ShippingAddress.Normalize()
	if err := address.Validate(); err != nil {
		return nil, err
	}

	var created *Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userCart, err := s.carts.FindByUser(tx, userID)
		if errors.Is(err, cart.ErrCartNotFound) {
			return ErrCartEmpty
		}
		if err != nil {
			return err
		}
		if userCart.IsEmpty() {
			return ErrCartEmpty
		}

		now := s.now()
		items := make([]OrderItem, 0, len(userCart.Items))
		movements := make([]inventory.Movement, 0, len(userCart.Items))
		total := decimal.Zero

		for i, line := range userCart.Items {
			prod, err := s.products.FindByIDForUpdate(tx, line.ProductID)
			if errors.Is(err, product.ErrProductNotFound) {
				return &ProductNotFoundError{ProductID: line.ProductID}
			}
			if err != nil {
				return err
			}

			shortage := &InsufficientStockError{
				ProductID:   prod.ID,
				ProductName: prod.Name,
				Requested:   line.Quantity,
				Available:   prod.Quantity,
			}
			if !prod.HasStock(line.Quantity) {
				return shortage
			}
			if err := s.products.DecrementStock(tx, prod.ID, line.Quantity); err != nil {
				if errors.Is(err, product.ErrStockConflict) {
					return shortage
				}
				return err
			}

			item := OrderItem{
				ProductID: prod.ID,
				Name:      prod.Name,
				Price:     prod.Price,
				Quantity:  line.Quantity,
				Position:  i,
			}
			total = total.Add(item.Subtotal())
			items = append(items, item)
			movements = append(movements, inventory.Movement{
				ProductID:        prod.ID,
				MovementType:     inventory.MovementTypeOutbound,
				Reason:           inventory.ReasonSale,
				Quantity:         line.Quantity,
				PreviousQuantity: prod.Quantity,
				NewQuantity:      prod.Quantity - line.Quantity,
				ReferenceType:    inventory.ReferenceOrder,
				CreatedBy:        userID,
			})
		}

		order := &Order{
			OrderNumber:     NewOrderNumber(now),
			UserID:          userID,
			Status:          StatusPending,
			TotalAmount:     total.Round(2),
			ShippingAddress: address,
			Items:           items,
			StatusHistory: []StatusHistory{{
				ToStatus:  StatusPending,
				ChangedBy: userID,
				Note:      "Order created",
				CreatedAt: now,
			}},
		}
		if err := s.orders.Create(tx, order); err != nil {
			return err
		}

		for i := range movements {
			movements[i].ReferenceID = order.ID
			if err := s.ledger.Record(tx, &movements[i]); err != nil {
				return err
			}
		}

		if err := s.carts.Clear(tx, userCart.ID); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
		"user_id":      userID,
		"total":        created.TotalAmount.StringFixed(2),
		"items":        len(created.Items),
	}).Info("Order created")

	s.notifyConfirmed(created)
	return created, nil
}

// CancelOrder cancels the user's own pending order and restocks its items
func (s *Service) CancelOrder(ctx context.Context, orderID, userID uint) (*Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.FindByIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return ErrOrderNotFound
		}
		return s.cancel(tx, order, userID, "Cancelled by customer")
	})
	if err != nil {
		return nil, err
	}

	cancelled, err := s.orders.FindByID(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"user_id":  userID,
	}).Info("Order cancelled")

	s.notifyStatusChanged(cancelled, StatusPending)
	return cancelled, nil
}

// UpdateStatus applies a staff status change. Cancellation always takes the
// restock path. Outside strict mode any other status may be written directly,
// except that a cancelled order stays cancelled.
func (s *Service) UpdateStatus(ctx context.Context, orderID, actorID uint, req *UpdateStatusRequest) (*Order, error) {
	target, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	var (
		updated  *Order
		previous Status
		changed  bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.FindByIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		updated = order

		if target == order.Status {
			return nil
		}
		if target == StatusCancelled {
			changed = true
			return s.cancel(tx, order, actorID, req.Note)
		}
		if order.Status == StatusCancelled {
			return &InvalidTransitionError{From: order.Status, To: target}
		}
		if s.config.Orders.StrictTransitions && !order.Status.CanTransitionTo(target) {
			return &InvalidTransitionError{From: order.Status, To: target}
		}

		now := s.now()
		extra := map[string]interface{}{}
		switch target {
		case StatusConfirmed:
			extra["confirmed_at"] = now
		case StatusShipped:
			extra["shipped_at"] = now
		case StatusDelivered:
			extra["delivered_at"] = now
		}
		if err := s.orders.UpdateStatus(tx, order.ID, order.Status, target, extra); err != nil {
			return err
		}
		if err := s.orders.AppendHistory(tx, order.ID, order.Status, target, actorID, req.Note, now); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	reloaded, err := s.orders.FindByID(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"actor_id": actorID,
		"from":     previous,
		"to":       reloaded.Status,
	}).Info("Order status updated")

	s.notifyStatusChanged(reloaded, previous)
	return reloaded, nil
}

// ListOrders returns the user's orders, newest first
func (s *Service) ListOrders(ctx context.Context, userID uint, params pagination.Params) (*ListResponse, error) {
	return s.list(ctx, Filter{UserID: userID}, params)
}

// GetOrder returns one of the user's orders
func (s *Service) GetOrder(ctx context.Context, orderID, userID uint) (*Order, error) {
	return s.orders.FindByIDForUser(s.db.WithContext(ctx), orderID, userID)
}

// ListAllOrders returns every order for staff, optionally filtered
func (s *Service) ListAllOrders(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	filter := Filter{UserID: req.UserID}
	if req.Status != "" {
		status, err := ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	return s.list(ctx, filter, req.Params)
}

// GetOrderForStaff returns any order
func (s *Service) GetOrderForStaff(ctx context.Context, orderID uint) (*Order, error) {
	return s.orders.FindByID(s.db.WithContext(ctx), orderID)
}

func (s *Service) list(ctx context.Context, filter Filter, params pagination.Params) (*ListResponse, error) {
	params = params.Normalize(s.config.Orders.DefaultPageSize, s.config.Orders.MaxPageSize)
	orders, total, err := s.orders.List(s.db.WithContext(ctx), filter, params)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Orders: orders, Pagination: pagination.NewMeta(params, total)}, nil
}

// cancel restocks every item and marks the locked order cancelled
func (s *Service) cancel(tx *gorm.DB, order *Order, actorID uint, note string) error {
	if !order.CanBeCancelled() {
		return ErrOrderNotCancellable
	}

	now := s.now()
	if err := s.orders.UpdateStatus(tx, order.ID, StatusPending, StatusCancelled, map[string]interface{}{
		"cancelled_at": now,
	}); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return ErrOrderNotCancellable
		}
		return err
	}

	for _, item := range order.Items {
		prod, err := s.products.FindAnyForUpdate(tx, item.ProductID)
		if errors.Is(err, product.ErrProductNotFound) {
			s.logger.WithFields(logrus.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("Product missing during restock, skipping")
			continue
		}
		if err != nil {
			return err
		}
		if err := s.products.IncrementStock(tx, prod.ID, item.Quantity); err != nil {
			return err
		}
		if err := s.ledger.Record(tx, &inventory.Movement{
			ProductID:        prod.ID,
			MovementType:     inventory.MovementTypeInbound,
			Reason:           inventory.ReasonCancellation,
			Quantity:         item.Quantity,
			PreviousQuantity: prod.Quantity,
			NewQuantity:      prod.Quantity + item.Quantity,
			ReferenceType:    inventory.ReferenceOrder,
			ReferenceID:      order.ID,
			CreatedBy:        actorID,
		}); err != nil {
			return err
		}
	}

	if note == "" {
		note = "Order cancelled"
	}
	if err := s.orders.AppendHistory(tx, order.ID, StatusPending, StatusCancelled, actorID, note, now); err != nil {
		return err
	}

	order.Status = StatusCancelled
	order.CancelledAt = &now
	return nil
}

func (s *Service) notifyConfirmed(order *Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyOrderConfirmed(order.UserID, order.Summary(""))
}

func (s *Service) notifyStatusChanged(order *Order, previous Status) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyOrderStatusChanged(order.UserID, order.Summary(previous))
}

var _ Notifier = (*notification.Dispatcher)(nil)
