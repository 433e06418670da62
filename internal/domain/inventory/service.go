// internal/domain/inventory/service.go
package inventory

import (
	"context"
	"fmt"

	"github.com/your-org/marketplace-api/internal/pkg/pagination"
	"gorm.io/gorm"
)

// Ledger appends and reads stock movements
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a stock ledger
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a movement on tx. It must run in the same transaction as
// the quantity change it describes.
func (l *Ledger) Record(tx *gorm.DB, m *Movement) error {
	if m.ProductID == 0 {
		return fmt.Errorf("movement requires a product")
	}
	switch m.MovementType {
	case MovementTypeInbound, MovementTypeOutbound, MovementTypeAdjustment:
	default:
		return fmt.Errorf("invalid movement type: %s", m.MovementType)
	}
	if err := tx.Create(m).Error; err != nil {
		return fmt.Errorf("failed to record movement: %w", err)
	}
	return nil
}

// MovementList is a page of movements
type MovementList struct {
	Movements  []Movement      `json:"movements"`
	Pagination pagination.Meta `json:"pagination"`
}

// ListByProduct returns a product's movements, newest first
func (l *Ledger) ListByProduct(ctx context.Context, productID uint, params pagination.Params) (*MovementList, error) {
	params = params.Normalize(20, 100)

	query := l.db.WithContext(ctx).Model(&Movement{}).Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count movements: %w", err)
	}

	var movements []Movement
	if err := query.Order("created_at DESC, id DESC").
		Offset(params.Offset()).Limit(params.Limit).
		Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	return &MovementList{Movements: movements, Pagination: pagination.NewMeta(params, total)}, nil
}

// NetChange sums the signed deltas recorded for a product
func (l *Ledger) NetChange(ctx context.Context, productID uint) (int, error) {
	var net int
	err := l.db.WithContext(ctx).Model(&Movement{}).
		Select("COALESCE(SUM(new_quantity - previous_quantity), 0)").
		Where("product_id = ?", productID).
		Scan(&net).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum movements: %w", err)
	}
	return net, nil
}
