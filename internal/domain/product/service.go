// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/domain/inventory"
	"github.com/your-org/marketplace-api/internal/pkg/apperrors"
	"github.com/your-org/marketplace-api/internal/pkg/pagination"
	"gorm.io/gorm"
)

// Service handles product business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
	store  *Store
	ledger *inventory.Ledger
	logger *logrus.Logger
}

// NewService creates a new product service
func NewService(db *gorm.DB, cfg *config.Config, store *Store, ledger *inventory.Ledger, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		config: cfg,
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

// ListRequest represents product list query parameters
type ListRequest struct {
	pagination.Params
	CategoryID uint   `form:"category_id"`
	SellerID   uint   `form:"seller_id"`
	Search     string `form:"search"`
	MinPrice   string `form:"min_price"`
	MaxPrice   string `form:"max_price"`
	InStock    *bool  `form:"in_stock"`
	SortBy     string `form:"sort_by"`
	SortOrder  string `form:"sort_order"`
}

// CreateRequest represents product creation data
type CreateRequest struct {
	Name        string           `json:"name" binding:"required,max=255"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	CategoryID  uint             `json:"category_id" binding:"required"`
	InStock     *bool            `json:"in_stock"`
	Quantity    int              `json:"quantity" binding:"min=0"`
	Images      []string         `json:"images" binding:"max=10"`
}

// UpdateRequest represents product update data
type UpdateRequest struct {
	Name        *string          `json:"name" binding:"omitempty,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	CategoryID  *uint            `json:"category_id"`
	InStock     *bool            `json:"in_stock"`
	Quantity    *int             `json:"quantity" binding:"omitempty,min=0"`
	Images      []string         `json:"images" binding:"max=10"`
}

// StockRequest sets the on-hand quantity
type StockRequest struct {
	Quantity *int   `json:"quantity" binding:"required,min=0"`
	Notes    string `json:"notes" binding:"max=500"`
}

// ListResponse is a page of products
type ListResponse struct {
	Products   []Product       `json:"products"`
	Pagination pagination.Meta `json:"pagination"`
}

// GetProducts retrieves products with filtering and pagination
func (s *Service) GetProducts(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	params := req.Params.Normalize(20, 100)

	query := s.db.WithContext(ctx).Model(&Product{})

	if req.CategoryID > 0 {
		query = query.Where("category_id = ?", req.CategoryID)
	}
	if req.SellerID > 0 {
		query = query.Where("seller_id = ?", req.SellerID)
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if req.MinPrice != "" {
		min, err := parsePrice("min_price", req.MinPrice)
		if err != nil {
			return nil, err
		}
		query = query.Where("price >= ?", min)
	}
	if req.MaxPrice != "" {
		max, err := parsePrice("max_price", req.MaxPrice)
		if err != nil {
			return nil, err
		}
		query = query.Where("price <= ?", max)
	}
	if req.InStock != nil {
		if *req.InStock {
			query = query.Where("in_stock = ? AND quantity > 0", true)
		} else {
			query = query.Where("in_stock = ? OR quantity = 0", false)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []Product
	err := query.Preload("Category").
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return &ListResponse{Products: products, Pagination: pagination.NewMeta(params, total)}, nil
}

// GetProduct retrieves a single product by ID
func (s *Service) GetProduct(ctx context.Context, id uint) (*Product, error) {
	var product Product
	err := s.db.WithContext(ctx).Preload("Category").Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return &product, nil
}

// CreateProduct creates a product owned by sellerID
func (s *Service) CreateProduct(ctx context.Context, sellerID uint, req *CreateRequest) (*Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name", "is required")
	}
	if req.Price == nil || req.Price.IsNegative() {
		return nil, apperrors.Validation("price", "must be zero or greater")
	}
	if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product := Product{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price.Round(2),
		CategoryID:  req.CategoryID,
		SellerID:    sellerID,
		InStock:     true,
		Quantity:    req.Quantity,
		Images:      ImageList(req.Images),
	}
	if req.InStock != nil {
		product.InStock = *req.InStock
	}

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": product.ID,
		"seller_id":  sellerID,
	}).Info("Product created")

	return s.GetProduct(ctx, product.ID)
}

// UpdateProduct applies a partial update. A quantity change goes through the
// same locked path as UpdateStock so it lands in the ledger.
func (s *Service) UpdateProduct(ctx context.Context, actorID uint, isAdmin bool, id uint, req *UpdateRequest) (*Product, error) {
	updates := make(map[string]interface{})

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("name", "cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, apperrors.Validation("price", "must be zero or greater")
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.CategoryID != nil {
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.InStock != nil {
		updates["in_stock"] = *req.InStock
	}
	if req.Images != nil {
		updates["images"] = ImageList(req.Images)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.store.FindByIDForUpdate(tx, id)
		if err != nil {
			return err
		}
		if err := authorize(product, actorID, isAdmin); err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(product).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update product: %w", err)
			}
		}
		if req.Quantity != nil {
			return s.adjustStock(tx, product, *req.Quantity, actorID, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetProduct(ctx, id)
}

// DeleteProduct soft deletes a product
func (s *Service) DeleteProduct(ctx context.Context, actorID uint, isAdmin bool, id uint) error {
	product, err := s.store.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	if err := authorize(product, actorID, isAdmin); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&Product{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": id,
		"actor_id":   actorID,
	}).Info("Product deleted")
	return nil
}

// UpdateStock overwrites the on-hand quantity and records an adjustment
func (s *Service) UpdateStock(ctx context.Context, actorID uint, isAdmin bool, id uint, req *StockRequest) (*Product, error) {
	if req.Quantity == nil || *req.Quantity < 0 {
		return nil, apperrors.Validation("quantity", "must be zero or greater")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.store.FindByIDForUpdate(tx, id)
		if err != nil {
			return err
		}
		if err := authorize(product, actorID, isAdmin); err != nil {
			return err
		}
		return s.adjustStock(tx, product, *req.Quantity, actorID, req.Notes)
	})
	if err != nil {
		return nil, err
	}

	return s.GetProduct(ctx, id)
}

// GetMovements lists the stock ledger of a product its owner can see
func (s *Service) GetMovements(ctx context.Context, actorID uint, isAdmin bool, id uint, params pagination.Params) (*inventory.MovementList, error) {
	product, err := s.store.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := authorize(product, actorID, isAdmin); err != nil {
		return nil, err
	}
	return s.ledger.ListByProduct(ctx, id, params)
}

func (s *Service) adjustStock(tx *gorm.DB, product *Product, quantity int, actorID uint, notes string) error {
	if quantity < 0 {
		return apperrors.Validation("quantity", "must be zero or greater")
	}
	if quantity == product.Quantity {
		return nil
	}
	if err := s.store.SetStock(tx, product.ID, quantity); err != nil {
		return err
	}
	return s.ledger.Record(tx, &inventory.Movement{
		ProductID:        product.ID,
		MovementType:     inventory.MovementTypeAdjustment,
		Reason:           inventory.ReasonAdjustment,
		Quantity:         abs(quantity - product.Quantity),
		PreviousQuantity: product.Quantity,
		NewQuantity:      quantity,
		ReferenceType:    inventory.ReferenceProduct,
		ReferenceID:      product.ID,
		Notes:            notes,
		CreatedBy:        actorID,
	})
}

func (s *Service) ensureCategory(ctx context.Context, categoryID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func authorize(p *Product, actorID uint, isAdmin bool) error {
	if isAdmin || p.SellerID == actorID {
		return nil
	}
	return apperrors.ErrForbidden
}

func parsePrice(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return decimal.Zero, apperrors.Validation(field, "must be a non-negative number")
	}
	return d, nil
}

// buildOrderClause builds ORDER BY clause for sorting
func buildOrderClause(sortBy, sortOrder string) string {
	columns := map[string]string{
		"name":       "name",
		"price":      "price",
		"created_at": "created_at",
		"rating":     "average_rating",
		"quantity":   "quantity",
	}

	column, ok := columns[sortBy]
	if !ok {
		column = "created_at"
	}
	sortOrder = strings.ToLower(sortOrder)
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, id %s", column, sortOrder, sortOrder)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
