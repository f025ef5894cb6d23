package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
)

type reservationResponse struct {
	ID          uuid.UUID               `json:"id"`
	ProductID   uuid.UUID               `json:"product_id"`
	Quantity    int                     `json:"quantity"`
	Status      enums.ReservationStatus `json:"status"`
	CartID      *uuid.UUID              `json:"cart_id,omitempty"`
	OrderID     *uuid.UUID              `json:"order_id,omitempty"`
	UserID      *uuid.UUID              `json:"user_id,omitempty"`
	ExpiresAt   time.Time               `json:"expires_at"`
	ConfirmedAt *time.Time              `json:"confirmed_at,omitempty"`
	ReleasedAt  *time.Time              `json:"released_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

func newReservationResponse(r *models.StockReservation) reservationResponse {
	return reservationResponse{
		ID:          r.ID,
		ProductID:   r.ProductID,
		Quantity:    r.Quantity,
		Status:      r.Status,
		CartID:      r.CartID,
		OrderID:     r.OrderID,
		UserID:      r.UserID,
		ExpiresAt:   r.ExpiresAt,
		ConfirmedAt: r.ConfirmedAt,
		ReleasedAt:  r.ReleasedAt,
		CreatedAt:   r.CreatedAt,
	}
}

type movementResponse struct {
	ID            uuid.UUID                 `json:"id"`
	Type          enums.StockMovementType   `json:"type"`
	Reason        enums.StockMovementReason `json:"reason"`
	Quantity      int                       `json:"quantity"`
	StockBefore   int                       `json:"stock_before"`
	StockAfter    int                       `json:"stock_after"`
	ReferenceID   *uuid.UUID                `json:"reference_id,omitempty"`
	ReferenceType *enums.ReferenceType      `json:"reference_type,omitempty"`
	ExpiresAt     *time.Time                `json:"expires_at,omitempty"`
	CreatedBy     *uuid.UUID                `json:"created_by,omitempty"`
	Notes         *string                   `json:"notes,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func newMovementResponses(rows []models.StockMovement) []movementResponse {
	out := make([]movementResponse, 0, len(rows))
	for _, m := range rows {
		out = append(out, movementResponse{
			ID:            m.ID,
			Type:          m.Type,
			Reason:        m.Reason,
			Quantity:      m.Quantity,
			StockBefore:   m.StockBefore,
			StockAfter:    m.StockAfter,
			ReferenceID:   m.ReferenceID,
			ReferenceType: m.ReferenceType,
			ExpiresAt:     m.ExpiresAt,
			CreatedBy:     m.CreatedBy,
			Notes:         m.Notes,
			CreatedAt:     m.CreatedAt,
		})
	}
	return out
}

type cartItemResponse struct {
	ProductID     uuid.UUID       `json:"product_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	ReservationID *uuid.UUID      `json:"reservation_id,omitempty"`
}

type cartResponse struct {
	ID              uuid.UUID          `json:"id"`
	UserID          uuid.UUID          `json:"user_id"`
	Items           []cartItemResponse `json:"items"`
	CouponID        *uuid.UUID         `json:"coupon_id,omitempty"`
	CouponCode      *string            `json:"coupon_code,omitempty"`
	CouponDiscount  decimal.Decimal    `json:"coupon_discount"`
	CouponAppliedAt *time.Time         `json:"coupon_applied_at,omitempty"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Total           decimal.Decimal    `json:"total"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func newCartResponse(c *models.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemResponse{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     item.LineTotal(),
			ReservationID: item.ReservationID,
		})
	}
	return cartResponse{
		ID:              c.ID,
		UserID:          c.UserID,
		Items:           items,
		CouponID:        c.CouponID,
		CouponCode:      c.CouponCode,
		CouponDiscount:  c.CouponDiscount,
		CouponAppliedAt: c.CouponAppliedAt,
		Subtotal:        c.Subtotal,
		Total:           c.Total,
		UpdatedAt:       c.UpdatedAt,
	}
}

type orderResponse struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	CartID         *uuid.UUID        `json:"cart_id,omitempty"`
	Status         enums.OrderStatus `json:"status"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	CouponID       *uuid.UUID        `json:"coupon_id,omitempty"`
	CouponCode     *string           `json:"coupon_code,omitempty"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	Total          decimal.Decimal   `json:"total"`
	CreatedAt      time.Time         `json:"created_at"`
}

func newOrderResponse(o *models.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		UserID:         o.UserID,
		CartID:         o.CartID,
		Status:         o.Status,
		Subtotal:       o.Subtotal,
		CouponID:       o.CouponID,
		CouponCode:     o.CouponCode,
		DiscountAmount: o.DiscountAmount,
		Total:          o.Total,
		CreatedAt:      o.CreatedAt,
	}
}

type usageResponse struct {
	ID             uuid.UUID       `json:"id"`
	CouponID       uuid.UUID       `json:"coupon_id"`
	UserID         uuid.UUID       `json:"user_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Recorded       bool            `json:"recorded"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newUsageResponse(u *models.CouponUsage, recorded bool) usageResponse {
	return usageResponse{
		ID:             u.ID,
		CouponID:       u.CouponID,
		UserID:         u.UserID,
		OrderID:        u.OrderID,
		DiscountAmount: u.DiscountAmount,
		Recorded:       recorded,
		CreatedAt:      u.CreatedAt,
	}
}
