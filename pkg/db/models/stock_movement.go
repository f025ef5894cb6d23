package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// StockMovement is one immutable row of the stock ledger.
type StockMovement struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	Type          enums.StockMovementType   `gorm:"column:type;type:varchar(32);not null"`
	Reason        enums.StockMovementReason `gorm:"column:reason;type:varchar(32);not null"`
	Quantity      int                       `gorm:"column:quantity;not null"`
	StockBefore   int                       `gorm:"column:stock_before;not null"`
	StockAfter    int                       `gorm:"column:stock_after;not null"`
	ReferenceID   *uuid.UUID                `gorm:"column:reference_id;type:uuid"`
	ReferenceType *enums.ReferenceType      `gorm:"column:reference_type;type:varchar(16)"`
	ExpiresAt     *time.Time                `gorm:"column:expires_at"`
	CreatedBy     *uuid.UUID                `gorm:"column:created_by;type:uuid"`
	Notes         *string                   `gorm:"column:notes"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	return ensureOrderedID(&m.ID)
}
