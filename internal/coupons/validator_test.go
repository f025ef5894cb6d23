package coupons

import (
	"testing"
	"time"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validatorNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func baseCoupon(kind enums.CouponType, value string) *models.Coupon {
	return &models.Coupon{
		ID:            uuid.New(),
		Code:          "TEST",
		Type:          kind,
		DiscountValue: dec(value),
		Active:        true,
	}
}

func TestValidate_OrderedChecks(t *testing.T) {
	tests := []struct {
		name   string
		coupon func() *models.Coupon
		input  ValidationInput
		want   enums.CouponValidationResult
	}{
		{
			name:   "missing coupon",
			coupon: func() *models.Coupon { return nil },
			want:   enums.CouponResultNotFound,
		},
		{
			name: "inactive beats expired",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponPercentage, "10")
				c.Active = false
				c.ExpiresAt = timePtr(validatorNow.Add(-time.Hour))
				return c
			},
			want: enums.CouponResultInactive,
		},
		{
			name: "not started",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponPercentage, "10")
				c.StartsAt = timePtr(validatorNow.Add(time.Hour))
				return c
			},
			want: enums.CouponResultNotStarted,
		},
		{
			name: "expired and exhausted reports expired",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponPercentage, "10")
				c.ExpiresAt = timePtr(validatorNow.Add(-time.Minute))
				c.UsageLimit = intPtr(5)
				c.UsedCount = 5
				return c
			},
			want: enums.CouponResultExpired,
		},
		{
			name: "exhausted",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponPercentage, "10")
				c.UsageLimit = intPtr(5)
				c.UsedCount = 5
				return c
			},
			want: enums.CouponResultUsageLimitExceeded,
		},
		{
			name: "per user limit",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponPercentage, "10")
				c.UsageLimitPerUser = intPtr(1)
				return c
			},
			input: ValidationInput{Subtotal: dec("100"), UserUsageCount: 1},
			want:  enums.CouponResultUserLimitExceeded,
		},
		{
			name: "first purchase flag",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponPercentage, "10")
				c.FirstPurchaseOnly = true
				return c
			},
			input: ValidationInput{Subtotal: dec("100")},
			want:  enums.CouponResultNotFirstPurchase,
		},
		{
			name:   "first purchase type implies the flag",
			coupon: func() *models.Coupon { return baseCoupon(enums.CouponFirstPurchase, "15") },
			input:  ValidationInput{Subtotal: dec("100")},
			want:   enums.CouponResultNotFirstPurchase,
		},
		{
			name: "minimum amount",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponFixedAmount, "10")
				c.MinimumAmount = decPtr("50")
				return c
			},
			input: ValidationInput{Subtotal: dec("49.99")},
			want:  enums.CouponResultMinimumAmountNotMet,
		},
		{
			name: "no applicable products",
			coupon: func() *models.Coupon {
				c := baseCoupon(enums.CouponProductDiscount, "10")
				c.Products = []models.Product{{ID: uuid.New()}}
				return c
			},
			input: ValidationInput{
				Subtotal: dec("20"),
				Items:    []LineItem{{ProductID: uuid.New(), Quantity: 1, UnitPrice: dec("20")}},
			},
			want: enums.CouponResultNoApplicableProducts,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Validate(tc.coupon(), tc.input, validatorNow)
			assert.False(t, result.IsValid)
			assert.Equal(t, tc.want, result.Code)
			assert.Equal(t, tc.want.Message(), result.Message)
			assert.Nil(t, result.Discount)
		})
	}
}

func TestValidate_PercentageCap(t *testing.T) {
	coupon := baseCoupon(enums.CouponPercentage, "50")
	coupon.MaximumDiscount = decPtr("20")

	result := Validate(coupon, ValidationInput{Subtotal: dec("100")}, validatorNow)
	require.True(t, result.IsValid)
	require.NotNil(t, result.Discount)
	assert.True(t, result.Discount.Amount.Equal(dec("20")), "got %s", result.Discount.Amount)
	assert.True(t, result.Discount.FinalSubtotal.Equal(dec("80")))
}

func TestValidate_Save10Scenario(t *testing.T) {
	coupon := baseCoupon(enums.CouponFixedAmount, "10")
	coupon.Code = "SAVE10"
	coupon.MinimumAmount = decPtr("50")

	result := Validate(coupon, ValidationInput{Subtotal: dec("40")}, validatorNow)
	assert.Equal(t, enums.CouponResultMinimumAmountNotMet, result.Code)

	result = Validate(coupon, ValidationInput{Subtotal: dec("60")}, validatorNow)
	require.True(t, result.IsValid)
	assert.Equal(t, enums.CouponResultValid, result.Code)
	assert.True(t, result.Discount.Amount.Equal(dec("10")))
	assert.True(t, result.Discount.FinalSubtotal.Equal(dec("50")))
}

func TestValidate_DiscountKinds(t *testing.T) {
	category := uuid.New()
	otherCategory := uuid.New()
	product := uuid.New()

	items := []LineItem{
		{ProductID: product, CategoryID: &category, Quantity: 2, UnitPrice: dec("15.00")},
		{ProductID: uuid.New(), CategoryID: &otherCategory, Quantity: 1, UnitPrice: dec("40.00")},
	}
	subtotal := SubtotalOf(items)
	require.True(t, subtotal.Equal(dec("70")))

	t.Run("fixed amount never exceeds subtotal", func(t *testing.T) {
		result := Validate(baseCoupon(enums.CouponFixedAmount, "100"), ValidationInput{Subtotal: dec("30")}, validatorNow)
		require.True(t, result.IsValid)
		assert.True(t, result.Discount.Amount.Equal(dec("30")))
		assert.True(t, result.Discount.FinalSubtotal.IsZero())
	})

	t.Run("free shipping", func(t *testing.T) {
		result := Validate(baseCoupon(enums.CouponFreeShipping, "0"), ValidationInput{Subtotal: subtotal}, validatorNow)
		require.True(t, result.IsValid)
		assert.True(t, result.Discount.Amount.IsZero())
		assert.True(t, result.Discount.FreeShipping)
		assert.True(t, result.Discount.FinalSubtotal.Equal(subtotal))
	})

	t.Run("category discount uses matching lines only", func(t *testing.T) {
		coupon := baseCoupon(enums.CouponCategoryDiscount, "10")
		coupon.Categories = []models.Category{{ID: category}}
		result := Validate(coupon, ValidationInput{Subtotal: subtotal, Items: items}, validatorNow)
		require.True(t, result.IsValid)
		assert.True(t, result.Discount.ApplicableSubtotal.Equal(dec("30")))
		assert.True(t, result.Discount.Amount.Equal(dec("3")))
		assert.True(t, result.Discount.FinalSubtotal.Equal(dec("67")))
	})

	t.Run("product discount respects the cap", func(t *testing.T) {
		coupon := baseCoupon(enums.CouponProductDiscount, "50")
		coupon.Products = []models.Product{{ID: product}}
		coupon.MaximumDiscount = decPtr("5")
		result := Validate(coupon, ValidationInput{Subtotal: subtotal, Items: items}, validatorNow)
		require.True(t, result.IsValid)
		assert.True(t, result.Discount.Amount.Equal(dec("5")))
	})

	t.Run("first purchase accepted for new customers", func(t *testing.T) {
		result := Validate(baseCoupon(enums.CouponFirstPurchase, "15"), ValidationInput{Subtotal: dec("80"), IsFirstPurchase: true}, validatorNow)
		require.True(t, result.IsValid)
		assert.True(t, result.Discount.Amount.Equal(dec("12")))
	})

	t.Run("rounds half up to cents", func(t *testing.T) {
		result := Validate(baseCoupon(enums.CouponPercentage, "5"), ValidationInput{Subtotal: dec("10.10")}, validatorNow)
		require.True(t, result.IsValid)
		assert.Equal(t, "0.51", result.Discount.Amount.StringFixed(2))
	})
}

func TestValidate_BoundariesAreInclusive(t *testing.T) {
	coupon := baseCoupon(enums.CouponPercentage, "10")
	coupon.StartsAt = timePtr(validatorNow)
	coupon.ExpiresAt = timePtr(validatorNow)
	coupon.MinimumAmount = decPtr("50")

	result := Validate(coupon, ValidationInput{Subtotal: dec("50")}, validatorNow)
	assert.True(t, result.IsValid)
}

func TestStatusOf(t *testing.T) {
	coupon := baseCoupon(enums.CouponPercentage, "10")
	assert.Equal(t, enums.CouponStatusActive, StatusOf(coupon, validatorNow))

	coupon.UsageLimit = intPtr(1)
	coupon.UsedCount = 1
	assert.Equal(t, enums.CouponStatusExhausted, StatusOf(coupon, validatorNow))

	coupon.ExpiresAt = timePtr(validatorNow.Add(-time.Second))
	assert.Equal(t, enums.CouponStatusExpired, StatusOf(coupon, validatorNow))

	coupon.Active = false
	assert.Equal(t, enums.CouponStatusInactive, StatusOf(coupon, validatorNow))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
}
