// Package notification delivers post-commit side effects (order and account
// emails) off the request path.
package notification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies what happened
type Kind string

const (
	KindOrderConfirmed     Kind = "order_confirmed"
	KindOrderStatusChanged Kind = "order_status_changed"
	KindWelcome            Kind = "welcome"
	KindPasswordReset      Kind = "password_reset"
)

// Recipient is the resolved addressee of a notification
type Recipient struct {
	UserID uint
	Email  string
	Name   string
}

// OrderItemSummary is one line of an order as shown to the customer
type OrderItemSummary struct {
	ProductID uint
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// OrderSummary is the order state captured at enqueue time
type OrderSummary struct {
	OrderID         uint
	OrderNumber     string
	Status          string
	PreviousStatus  string
	TotalAmount     decimal.Decimal
	ShippingAddress string
	Items           []OrderItemSummary
	PlacedAt        time.Time
}

// Sink performs the actual delivery. Implementations may block and fail,
// the dispatcher isolates callers from both.
type Sink interface {
	NotifyOrderConfirmed(ctx context.Context, to Recipient, order OrderSummary) error
	NotifyOrderStatusChanged(ctx context.Context, to Recipient, order OrderSummary) error
	NotifyWelcome(ctx context.Context, to Recipient, activationURL string) error
	NotifyPasswordReset(ctx context.Context, to Recipient, resetURL string) error
}

// RecipientResolver looks up contact details for a user id
type RecipientResolver interface {
	ResolveRecipient(ctx context.Context, userID uint) (Recipient, error)
}

// RecipientResolverFunc adapts a function to RecipientResolver
type RecipientResolverFunc func(ctx context.Context, userID uint) (Recipient, error)

func (f RecipientResolverFunc) ResolveRecipient(ctx context.Context, userID uint) (Recipient, error) {
	return f(ctx, userID)
}

type event struct {
	kind       Kind
	userID     uint
	order      OrderSummary
	link       string
	enqueuedAt time.Time
}
