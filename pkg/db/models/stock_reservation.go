package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// StockReservation is a time-bounded hold against a product's stock.
type StockReservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	UserID      *uuid.UUID              `gorm:"column:user_id;type:uuid"`
	CartID      *uuid.UUID              `gorm:"column:cart_id;type:uuid;index"`
	OrderID     *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	Status      enums.ReservationStatus `gorm:"column:status;type:varchar(16);not null;default:'active'"`
	ExpiresAt   time.Time               `gorm:"column:expires_at;not null"`
	ConfirmedAt *time.Time              `gorm:"column:confirmed_at"`
	ReleasedAt  *time.Time              `gorm:"column:released_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *StockReservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// IsExpiredAt reports whether an active hold has outlived its TTL.
func (r StockReservation) IsExpiredAt(now time.Time) bool {
	return r.Status == enums.ReservationActive && r.ExpiresAt.Before(now)
}
