// internal/domain/order/entity.go
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-api/internal/domain/notification"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
)

// Status represents the fulfillment state of an order
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions is the fulfillment graph. Cancellation is only reachable
// from pending.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped},
	StatusShipped:   {StatusDelivered},
}

// AllStatuses lists every known status in lifecycle order
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus validates a raw status value
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next directly follows s in the graph
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// ShippingAddress is embedded in the order row
type ShippingAddress struct {
	Street  string `gorm:"size:255" json:"street" binding:"required"`
	City    string `gorm:"size:100" json:"city" binding:"required"`
	State   string `gorm:"size:100" json:"state" binding:"required"`
	ZipCode string `gorm:"size:20" json:"zip_code" binding:"required"`
	Country string `gorm:"size:100" json:"country" binding:"required"`
}

// Normalize trims every field
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
		Country: strings.TrimSpace(a.Country),
	}
}

// Validate reports the first missing field
func (a ShippingAddress) Validate() error {
	fields := []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip_code", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return apperrors.Validation("shipping_address."+f.name, "is required")
		}
	}
	return nil
}

func (a ShippingAddress) String() string {
	return fmt.Sprintf("%s, %s, %s %s, %s", a.Street, a.City, a.State, a.ZipCode, a.Country)
}

// Order is the durable record of a purchase. Orders are never deleted.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"uniqueIndex;not null;size:32" json:"order_number"`
	UserID          uint            `gorm:"not null;index:idx_orders_user_created,priority:1" json:"user_id"`
	Status          Status          `gorm:"not null;size:20;default:'pending';index" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index:idx_orders_user_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"items"`
	StatusHistory []StatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"status_history,omitempty"`
}

// OrderItem is a frozen snapshot of a cart line at purchase time
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Name      string          `gorm:"not null;size:255" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity  int             `gorm:"not null;check:quantity >= 1" json:"quantity"`
	Position  int             `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time       `json:"created_at"`
}

// StatusHistory records one status change
type StatusHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	FromStatus Status    `gorm:"size:20" json:"from_status,omitempty"`
	ToStatus   Status    `gorm:"not null;size:20" json:"to_status"`
	ChangedBy  uint      `gorm:"index" json:"changed_by"`
	Note       string    `gorm:"size:500" json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Order) TableName() string         { return "orders" }
func (OrderItem) TableName() string     { return "order_items" }
func (StatusHistory) TableName() string { return "order_status_history" }

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXXXX
func NewOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", at.UTC().Format("20060102"), suffix)
}

// Subtotal is price times quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CalculateTotal sums every line
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}

// CanBeCancelled reports whether the order is still pending
func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending
}

// Summary captures what a customer notification needs
func (o *Order) Summary(previous Status) notification.OrderSummary {
	items := make([]notification.OrderItemSummary, len(o.Items))
	for i, item := range o.Items {
		items[i] = notification.OrderItemSummary{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}
	return notification.OrderSummary{
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		PreviousStatus:  string(previous),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress.String(),
		Items:           items,
		PlacedAt:        o.CreatedAt,
	}
}
