// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/product"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// Service handles cart business logic
type Service struct {
	db       *gorm.DB
	store    *Store
	products *product.Store
	logger   *logrus.Logger
}

// NewService creates a new cart service
func NewService(db *gorm.DB, store *Store, products *product.Store, logger *logrus.Logger) *Service {
	return &Service{
		db:       db,
		store:    store,
		products: products,
		logger:   logger,
	}
}

// AddItemRequest represents add to cart request
type AddItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// UpdateItemRequest represents update cart item request
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// CartResponse is a cart with product details and totals
type CartResponse struct {
	*Cart
	Totals Totals `json:"totals"`
}

// GetCart returns the user's cart, creating it on first access
func (s *Service) GetCart(ctx context.Context, userID uint) (*CartResponse, error) {
	db := s.db.WithContext(ctx)
	cart, err := s.store.FindOrCreate(db, userID)
	if err != nil {
		return nil, err
	}
	if err := s.loadProducts(db, cart); err != nil {
		return nil, err
	}
	return &CartResponse{Cart: cart, Totals: cart.CalculateTotals()}, nil
}

// AddItem adds a product to the cart, merging with an existing line
func (s *Service) AddItem(ctx context.Context, userID uint, req *AddItemRequest) (*CartResponse, error) {
	if req.Quantity < 1 {
		return nil, apperrors.Validation("quantity", "must be at least 1")
	}

	if _, err := s.store.FindOrCreate(s.db.WithContext(ctx), userID); err != nil {
		return nil, err
	}

	err := s.addItem(ctx, userID, req)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent add inserted the line first; retrying merges into it
		err = s.addItem(ctx, userID, req)
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"product_id": req.ProductID,
		"quantity":   req.Quantity,
	}).Debug("Cart item added")

	return s.GetCart(ctx, userID)
}

func (s *Service) addItem(ctx context.Context, userID uint, req *AddItemRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prod, err := s.products.FindByID(tx, req.ProductID)
		if err != nil {
			return err
		}
		if !prod.IsPurchasable() {
			return ErrProductInactive
		}

		cart, err := s.store.FindByUser(tx, userID)
		if err != nil {
			return err
		}

		for _, item := range cart.Items {
			if item.ProductID != req.ProductID {
				continue
			}
			merged := item.Quantity + req.Quantity
			if !prod.HasStock(merged) {
				return &InsufficientStockError{ProductName: prod.Name, Available: prod.Quantity}
			}
			if err := tx.Model(&item).Update("quantity", merged).Error; err != nil {
				return fmt.Errorf("failed to update cart item: %w", err)
			}
			return nil
		}

		if !prod.HasStock(req.Quantity) {
			return &InsufficientStockError{ProductName: prod.Name, Available: prod.Quantity}
		}

		position := 0
		for _, item := range cart.Items {
			if item.Position >= position {
				position = item.Position + 1
			}
		}
		item := CartItem{
			CartID:    cart.ID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Position:  position,
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
		return nil
	})
}

// UpdateItem sets the quantity of one cart line
func (s *Service) UpdateItem(ctx context.Context, userID uint, itemID string, req *UpdateItemRequest) (*CartResponse, error) {
	if req.Quantity < 1 {
		return nil, apperrors.Validation("quantity", "must be at least 1")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.findItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		prod, err := s.products.FindByID(tx, item.ProductID)
		if err != nil {
			return err
		}
		if !prod.HasStock(req.Quantity) {
			return &InsufficientStockError{ProductName: prod.Name, Available: prod.Quantity}
		}
		if err := tx.Model(item).Update("quantity", req.Quantity).Error; err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

// RemoveItem deletes one cart line
func (s *Service) RemoveItem(ctx context.Context, userID uint, itemID string) (*CartResponse, error) {
	db := s.db.WithContext(ctx)
	item, err := s.findItem(db, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := db.Delete(item).Error; err != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}
	return s.GetCart(ctx, userID)
}

// ClearCart removes every item from the user's cart
func (s *Service) ClearCart(ctx context.Context, userID uint) error {
	db := s.db.WithContext(ctx)
	cart, err := s.store.FindByUser(db, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.Clear(db, cart.ID)
}

func (s *Service) findItem(db *gorm.DB, userID uint, itemID string) (*CartItem, error) {
	var item CartItem
	err := db.Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}
	return &item, nil
}

// loadProducts attaches live products; lines whose product was deleted keep
// a nil Product and are rejected at checkout.
func (s *Service) loadProducts(db *gorm.DB, cart *Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}
	ids := make([]uint, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	var products []product.Product
	if err := db.Preload("Category").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return fmt.Errorf("failed to load cart products: %w", err)
	}
	byID := make(map[uint]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for i := range cart.Items {
		cart.Items[i].Product = byID[cart.Items[i].ProductID]
	}
	return nil
}
