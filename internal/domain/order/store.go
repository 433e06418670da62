// internal/domain/order/store.go
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/your-org/marketplace-api/internal/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists orders on a caller-supplied handle
type Store struct{}

// NewStore creates an order store
func NewStore() *Store {
	return &Store{}
}

// Filter narrows order listings
type Filter struct {
	UserID uint
	Status Status
}

// Create inserts the order with its items and history rows
func (s *Store) Create(tx *gorm.DB, order *Order) error {
	if err := tx.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// FindByID loads an order with items and history
func (s *Store) FindByID(db *gorm.DB, id uint) (*Order, error) {
	return s.find(withDetails(db).Where("id = ?", id))
}

// FindByIDForUser loads an order only if userID owns it
func (s *Store) FindByIDForUser(db *gorm.DB, id, userID uint) (*Order, error) {
	return s.find(withDetails(db).Where("id = ? AND user_id = ?", id, userID))
}

// FindByIDForUpdate loads an order and holds its row lock until tx ends
func (s *Store) FindByIDForUpdate(tx *gorm.DB, id uint) (*Order, error) {
	return s.find(withDetails(tx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// UpdateStatus moves the order from one status to another. It fails with
// ErrStatusConflict if the stored status is no longer from.
func (s *Store) UpdateStatus(tx *gorm.DB, id uint, from, to Status, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&Order{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// AppendHistory records a status change
func (s *Store) AppendHistory(tx *gorm.DB, orderID uint, from, to Status, changedBy uint, note string, at time.Time) error {
	entry := StatusHistory{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  changedBy,
		Note:       note,
		CreatedAt:  at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}
	return nil
}

// List returns a page of orders, newest first
func (s *Store) List(db *gorm.DB, filter Filter, params pagination.Params) ([]Order, int64, error) {
	query := db.Model(&Order{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	err := query.Preload("Items", orderItems).
		Order("created_at DESC, id DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve orders: %w", err)
	}
	return orders, total, nil
}

func (s *Store) find(query *gorm.DB) (*Order, error) {
	var order Order
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", orderItems).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}
