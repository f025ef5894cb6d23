package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Cart is the shopper's basket; it carries at most one coupon.
type Cart struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.CartStatus `gorm:"column:status;type:varchar(16);not null;default:'open'"`
	CouponID        *uuid.UUID       `gorm:"column:coupon_id;type:uuid"`
	CouponCode      *string          `gorm:"column:coupon_code"`
	CouponDiscount  decimal.Decimal  `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	CouponAppliedAt *time.Time       `gorm:"column:coupon_applied_at"`
	Subtotal        decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Items           []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	if c.Status == "" {
		c.Status = enums.CartOpen
	}
	return nil
}

// IsOpen reports whether items and coupons may still change.
func (c Cart) IsOpen() bool {
	return c.Status == "" || c.Status == enums.CartOpen
}

// HasCoupon reports whether a coupon is attached.
func (c Cart) HasCoupon() bool {
	return c.CouponID != nil
}

// CartItem is one product line in a cart. ReservationID is the stock hold backing the line.
type CartItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID        uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	Product       *Product        `gorm:"foreignKey:ProductID"`
	Quantity      int             `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ReservationID *uuid.UUID      `gorm:"column:reservation_id;type:uuid"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotal is unit price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
