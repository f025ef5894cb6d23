package coupons

import (
	"github.com/angelmondragon/shopcore/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one cart line as the validator sees it.
type LineItem struct {
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
	Quantity   int             `json:"quantity" validate:"gt=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Subtotal is unit price times quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ValidationInput carries everything Validate needs besides the coupon row.
type ValidationInput struct {
	Subtotal        decimal.Decimal
	Items           []LineItem
	IsFirstPurchase bool
	UserUsageCount  int
}

// Discount is the computed effect of a valid coupon.
type Discount struct {
	Amount             decimal.Decimal `json:"amount"`
	FinalSubtotal      decimal.Decimal `json:"final_subtotal"`
	ApplicableSubtotal decimal.Decimal `json:"applicable_subtotal"`
	FreeShipping       bool            `json:"free_shipping"`
}

// ValidationResult is the verdict returned for every validation; an invalid
// coupon is a normal outcome, not an error.
type ValidationResult struct {
	IsValid    bool                         `json:"is_valid"`
	Code       enums.CouponValidationResult `json:"code"`
	Message    string                       `json:"message"`
	CouponID   *uuid.UUID                   `json:"coupon_id,omitempty"`
	CouponCode string                       `json:"coupon_code,omitempty"`
	Discount   *Discount                    `json:"discount,omitempty"`
}

// ValidationRequest is the preview input of ValidateCoupon. When IsFirstPurchase
// is nil it is derived from the user's order history; a zero Subtotal is
// derived from Items.
type ValidationRequest struct {
	Code            string          `json:"code" validate:"required"`
	UserID          uuid.UUID       `json:"user_id" validate:"required"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Items           []LineItem      `json:"items" validate:"dive"`
	IsFirstPurchase *bool           `json:"is_first_purchase,omitempty"`
}

// RecordUsageInput identifies one redemption.
type RecordUsageInput struct {
	CouponID       uuid.UUID       `json:"coupon_id"`
	UserID         uuid.UUID       `json:"user_id" validate:"required"`
	OrderID        uuid.UUID       `json:"order_id" validate:"required"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}
