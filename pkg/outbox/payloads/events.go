package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLowEvent fires when a stock decrease leaves a product at or below min_stock.
type StockLowEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
}

// ReservationConfirmedEvent fires when a hold turns into a permanent decrement.
type ReservationConfirmedEvent struct {
	ReservationID uuid.UUID  `json:"reservation_id"`
	ProductID     uuid.UUID  `json:"product_id"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Quantity      int        `json:"quantity"`
	StockAfter    int        `json:"stock_after"`
	ConfirmedAt   time.Time  `json:"confirmed_at"`
}

// CouponRedeemedEvent fires once per (coupon, order) redemption.
type CouponRedeemedEvent struct {
	CouponID       uuid.UUID       `json:"coupon_id"`
	Code           string          `json:"code"`
	UserID         uuid.UUID       `json:"user_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	UsedCount      int             `json:"used_count"`
}
