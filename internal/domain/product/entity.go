// internal/domain/product/entity.go
package product

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product represents sellable inventory
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"not null;size:255;index" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null;index" json:"price"`
	CategoryID    uint            `gorm:"not null;index" json:"category_id"`
	SellerID      uint            `gorm:"not null;index" json:"seller_id"`
	InStock       bool            `gorm:"not null" json:"in_stock"`
	Quantity      int             `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	AverageRating float64         `gorm:"not null;default:0" json:"average_rating"`
	ReviewCount   int             `gorm:"not null;default:0" json:"review_count"`
	Images        ImageList       `gorm:"type:text" json:"images"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category,omitempty"`
}

// Review is one user's rating of one product
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reviews_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_reviews_user_product;index" json:"product_id"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string    `gorm:"size:500" json:"comment"`
	Verified  bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"product,omitempty"`
}

func (Category) TableName() string { return "categories" }
func (Product) TableName() string  { return "products" }
func (Review) TableName() string   { return "reviews" }

// IsPurchasable reports whether the product can be sold at all. A zero
// quantity means out of stock whatever the flag says.
func (p *Product) IsPurchasable() bool {
	return p.InStock && p.Quantity > 0
}

// HasStock reports whether qty units can be taken right now
func (p *Product) HasStock(qty int) bool {
	return p.InStock && p.Quantity >= qty
}

// IsLowStock reports whether the product is in stock at or below threshold
func (p *Product) IsLowStock(threshold int) bool {
	return p.InStock && p.Quantity <= threshold
}

// ImageList is stored as a JSON array of URLs
type ImageList []string

// Value implements driver.Valuer
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *ImageList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = ImageList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported image list type %T", src)
	}
	if len(raw) == 0 {
		*l = ImageList{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}
