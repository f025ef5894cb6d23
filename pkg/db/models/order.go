package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Order is read for first-purchase detection and coupon redemption.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	CartID         *uuid.UUID        `gorm:"column:cart_id;type:uuid"`
	Status         enums.OrderStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	Subtotal       decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	CouponID       *uuid.UUID        `gorm:"column:coupon_id;type:uuid"`
	CouponCode     *string           `gorm:"column:coupon_code"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	Total          decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
