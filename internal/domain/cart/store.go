// internal/domain/cart/store.go
package cart

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Store reads and clears carts on a caller-supplied handle
type Store struct{}

// NewStore creates a cart store
func NewStore() *Store {
	return &Store{}
}

// FindByUser loads the user's cart with items in insertion order
func (s *Store) FindByUser(db *gorm.DB, userID uint) (*Cart, error) {
	var cart Cart
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, created_at ASC")
	}).Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &cart, nil
}

// FindOrCreate returns the user's cart, creating an empty one if needed
func (s *Store) FindOrCreate(db *gorm.DB, userID uint) (*Cart, error) {
	cart, err := s.FindByUser(db, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	cart = &Cart{UserID: userID}
	if err := db.Create(cart).Error; err != nil {
		// another request created it first
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.FindByUser(db, userID)
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	cart.Items = []CartItem{}
	return cart, nil
}

// Clear deletes every item of the cart and keeps the cart row
func (s *Store) Clear(db *gorm.DB, cartID uint) error {
	if err := db.Where("cart_id = ?", cartID).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
