// internal/domain/inventory/entity.go
package inventory

import "time"

// MovementType is the direction of a stock change
type MovementType string

const (
	MovementTypeInbound    MovementType = "inbound"    // restock, cancellation
	MovementTypeOutbound   MovementType = "outbound"   // sale
	MovementTypeAdjustment MovementType = "adjustment" // manual overwrite
)

// MovementReason is why stock changed
type MovementReason string

const (
	ReasonSale         MovementReason = "sale"
	ReasonCancellation MovementReason = "cancellation"
	ReasonAdjustment   MovementReason = "adjustment"
)

// Reference types
const (
	ReferenceOrder   = "order"
	ReferenceProduct = "product"
)

// Movement is one row of the append-only stock ledger
type Movement struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ProductID        uint           `gorm:"not null;index" json:"product_id"`
	MovementType     MovementType   `gorm:"not null;size:20" json:"movement_type"`
	Reason           MovementReason `gorm:"not null;size:20" json:"reason"`
	Quantity         int            `gorm:"not null" json:"quantity"`
	PreviousQuantity int            `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int            `gorm:"not null" json:"new_quantity"`
	ReferenceType    string         `gorm:"size:50;index:idx_stock_movements_reference" json:"reference_type"`
	ReferenceID      uint           `gorm:"index:idx_stock_movements_reference" json:"reference_id"`
	Notes            string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy        uint           `gorm:"index" json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (Movement) TableName() string { return "stock_movements" }

// Delta is the signed change this movement applied
func (m *Movement) Delta() int {
	return m.NewQuantity - m.PreviousQuantity
}
