package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Coupon is a discount definition. Code is stored uppercase.
type Coupon struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code              string           `gorm:"column:code;not null;uniqueIndex"`
	Type              enums.CouponType `gorm:"column:type;type:varchar(32);not null"`
	DiscountValue     decimal.Decimal  `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinimumAmount     *decimal.Decimal `gorm:"column:minimum_amount;type:numeric(12,2)"`
	MaximumDiscount   *decimal.Decimal `gorm:"column:maximum_discount;type:numeric(12,2)"`
	UsageLimit        *int             `gorm:"column:usage_limit"`
	UsageLimitPerUser *int             `gorm:"column:usage_limit_per_user"`
	UsedCount         int              `gorm:"column:used_count;not null;default:0"`
	FirstPurchaseOnly bool             `gorm:"column:first_purchase_only;not null;default:false"`
	Active            bool             `gorm:"column:status;not null"`
	StartsAt          *time.Time       `gorm:"column:starts_at"`
	ExpiresAt         *time.Time       `gorm:"column:expires_at"`
	Categories        []Category       `gorm:"many2many:coupon_categories;"`
	Products          []Product        `gorm:"many2many:coupon_products;"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return nil
}

// CouponUsage is one redemption of a coupon on an order.
type CouponUsage struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CouponID       uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_order;index:idx_coupon_usages_coupon_user"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index:idx_coupon_usages_coupon_user"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_order"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (u *CouponUsage) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
