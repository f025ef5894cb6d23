package coupons

import (
	"strings"
	"time"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode trims and uppercases a coupon code the way codes are stored.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// StatusOf derives the coupon status. Precedence: inactive, expired, exhausted, active.
func StatusOf(coupon *models.Coupon, now time.Time) enums.CouponStatus {
	switch {
	case !coupon.Active:
		return enums.CouponStatusInactive
	case coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(now):
		return enums.CouponStatusExpired
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return enums.CouponStatusExhausted
	default:
		return enums.CouponStatusActive
	}
}

// Validate runs the ordered coupon checks and computes the discount. It never
// touches storage; a nil coupon reports not_found.
func Validate(coupon *models.Coupon, input ValidationInput, now time.Time) ValidationResult {
	if coupon == nil {
		return reject(nil, enums.CouponResultNotFound)
	}
	if !coupon.Active {
		return reject(coupon, enums.CouponResultInactive)
	}
	if coupon.StartsAt != nil && coupon.StartsAt.After(now) {
		return reject(coupon, enums.CouponResultNotStarted)
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(now) {
		return reject(coupon, enums.CouponResultExpired)
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return reject(coupon, enums.CouponResultUsageLimitExceeded)
	}
	if coupon.UsageLimitPerUser != nil && input.UserUsageCount >= *coupon.UsageLimitPerUser {
		return reject(coupon, enums.CouponResultUserLimitExceeded)
	}
	if requiresFirstPurchase(coupon) && !input.IsFirstPurchase {
		return reject(coupon, enums.CouponResultNotFirstPurchase)
	}
	if coupon.MinimumAmount != nil && input.Subtotal.LessThan(*coupon.MinimumAmount) {
		return reject(coupon, enums.CouponResultMinimumAmountNotMet)
	}

	base := input.Subtotal
	if coupon.Type.IsScoped() {
		matched, applicable := applicableSubtotal(coupon, input.Items)
		if !matched {
			return reject(coupon, enums.CouponResultNoApplicableProducts)
		}
		base = applicable
	}

	discount := computeDiscount(coupon, input.Subtotal, base)
	result := accept(coupon)
	result.Discount = &discount
	return result
}

func requiresFirstPurchase(coupon *models.Coupon) bool {
	return coupon.FirstPurchaseOnly || coupon.Type == enums.CouponFirstPurchase
}

func computeDiscount(coupon *models.Coupon, subtotal, base decimal.Decimal) Discount {
	amount := decimal.Zero
	freeShipping := false

	switch coupon.Type {
	case enums.CouponPercentage, enums.CouponFirstPurchase,
		enums.CouponCategoryDiscount, enums.CouponProductDiscount:
		amount = base.Mul(coupon.DiscountValue).Div(hundred)
		if coupon.MaximumDiscount != nil && amount.GreaterThan(*coupon.MaximumDiscount) {
			amount = *coupon.MaximumDiscount
		}
	case enums.CouponFixedAmount:
		amount = decimal.Min(coupon.DiscountValue, subtotal)
	case enums.CouponFreeShipping:
		freeShipping = true
	}

	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	amount = roundMoney(amount)
	return Discount{
		Amount:             amount,
		FinalSubtotal:      roundMoney(subtotal.Sub(amount)),
		ApplicableSubtotal: roundMoney(base),
		FreeShipping:       freeShipping,
	}
}

// applicableSubtotal sums the lines matching the coupon's category or product
// associations. matched is false when no line qualifies.
func applicableSubtotal(coupon *models.Coupon, items []LineItem) (bool, decimal.Decimal) {
	allowed := make(map[uuid.UUID]struct{})
	switch coupon.Type {
	case enums.CouponCategoryDiscount:
		for _, category := range coupon.Categories {
			allowed[category.ID] = struct{}{}
		}
	case enums.CouponProductDiscount:
		for _, product := range coupon.Products {
			allowed[product.ID] = struct{}{}
		}
	}

	matched := false
	total := decimal.Zero
	for _, item := range items {
		key := item.ProductID
		if coupon.Type == enums.CouponCategoryDiscount {
			if item.CategoryID == nil {
				continue
			}
			key = *item.CategoryID
		}
		if _, ok := allowed[key]; !ok {
			continue
		}
		matched = true
		total = total.Add(item.Subtotal())
	}
	return matched, total
}

// roundMoney rounds half-up to cents; amounts here are never negative.
func roundMoney(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

func reject(coupon *models.Coupon, code enums.CouponValidationResult) ValidationResult {
	result := ValidationResult{Code: code, Message: code.Message()}
	if coupon != nil {
		id := coupon.ID
		result.CouponID = &id
		result.CouponCode = coupon.Code
	}
	return result
}

func accept(coupon *models.Coupon) ValidationResult {
	result := reject(coupon, enums.CouponResultValid)
	result.IsValid = true
	return result
}

// SubtotalOf sums the line subtotals.
func SubtotalOf(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return roundMoney(total)
}
