package cart

import (
	"time"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Totals are the money columns persisted on a cart.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// CouponFields is what attaching a coupon writes onto the cart row.
type CouponFields struct {
	CouponID  uuid.UUID
	Code      string
	AppliedAt time.Time
	Totals    Totals
}

// ComputeTotals recomputes totals from live items. The discount is clamped so
// the total never goes below zero.
func ComputeTotals(items []models.CartItem, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	discount = decimal.Min(discount, subtotal)
	return Totals{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Total:    subtotal.Sub(discount).Round(2),
	}
}
