// internal/domain/product/store.go
package product

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the catalog's stock access path. Every method runs on the
// handle it is given so callers can compose it into their own transaction.
type Store struct{}

// NewStore creates a catalog store
func NewStore() *Store {
	return &Store{}
}

// FindByID loads a live product
func (s *Store) FindByID(db *gorm.DB, id uint) (*Product, error) {
	var product Product
	if err := db.Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &product, nil
}

// FindByIDForUpdate loads a live product and holds its row lock until tx ends.
// The lock clause is a no-op on sqlite, which serializes writers anyway.
func (s *Store) FindByIDForUpdate(tx *gorm.DB, id uint) (*Product, error) {
	return s.FindByID(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// DecrementStock takes qty units only if that many are on hand
func (s *Store) DecrementStock(tx *gorm.DB, id uint, qty int) error {
	result := tx.Model(&Product{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

// IncrementStock returns qty units to the product, including one that was
// soft deleted after the sale.
func (s *Store) IncrementStock(tx *gorm.DB, id uint, qty int) error {
	result := tx.Unscoped().Model(&Product{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if result.Error != nil {
		return fmt.Errorf("failed to increment stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SetStock overwrites the on-hand quantity
func (s *Store) SetStock(tx *gorm.DB, id uint, qty int) error {
	if qty < 0 {
		return fmt.Errorf("stock cannot be negative: %d", qty)
	}
	result := tx.Model(&Product{}).Where("id = ?", id).Update("quantity", qty)
	if result.Error != nil {
		return fmt.Errorf("failed to set stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// FindAnyForUpdate locks a product row even if it was soft deleted. Used to
// return stock to products removed after they were sold.
func (s *Store) FindAnyForUpdate(tx *gorm.DB, id uint) (*Product, error) {
	return s.FindByID(tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}), id)
}
