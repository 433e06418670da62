package order

import (
	"errors"
	"fmt"
)

var (
	ErrCartEmpty           = errors.New("cart is empty")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("cannot cancel order that is not pending")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrStatusConflict      = errors.New("order status changed concurrently")
)

// ProductNotFoundError is returned when a cart line points at a missing product
type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product %d not found", e.ProductID)
}

// InsufficientStockError names the first product that could not be covered
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s", e.ProductName)
}

// InvalidTransitionError is returned for a status change outside the graph
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
