// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"gorm.io/gorm"
)

// Cart is a user's single active cart
type Cart struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE;" json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one product line. A product appears at most once per cart.
type CartItem struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"product_id"`
	Quantity  int       `gorm:"not null;check:quantity >= 1" json:"quantity"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product *product.Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (Cart) TableName() string     { return "carts" }
func (CartItem) TableName() string { return "cart_items" }

// BeforeCreate assigns the item id
func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// IsEmpty reports whether the cart has no items
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Totals is the current value of a cart at today's prices
type Totals struct {
	ItemCount     int             `json:"item_count"`
	TotalQuantity int             `json:"total_quantity"`
	SubTotal      decimal.Decimal `json:"sub_total"`
}

// CalculateTotals prices every item that still has a live product
func (c *Cart) CalculateTotals() Totals {
	totals := Totals{SubTotal: decimal.Zero}
	for _, item := range c.Items {
		totals.ItemCount++
		totals.TotalQuantity += item.Quantity
		if item.Product != nil {
			totals.SubTotal = totals.SubTotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	totals.SubTotal = totals.SubTotal.Round(2)
	return totals
}
