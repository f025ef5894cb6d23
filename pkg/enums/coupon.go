package enums

import "fmt"

// CouponType selects how a coupon discount is computed.
type CouponType string

const (
	CouponPercentage       CouponType = "percentage"
	CouponFixedAmount      CouponType = "fixed_amount"
	CouponFreeShipping     CouponType = "free_shipping"
	CouponCategoryDiscount CouponType = "category_discount"
	CouponProductDiscount  CouponType = "product_discount"
	CouponFirstPurchase    CouponType = "first_purchase"
)

var validCouponTypes = []CouponType{
	CouponPercentage,
	CouponFixedAmount,
	CouponFreeShipping,
	CouponCategoryDiscount,
	CouponProductDiscount,
	CouponFirstPurchase,
}

func (t CouponType) IsValid() bool {
	for _, candidate := range validCouponTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsScoped reports whether the discount only applies to associated categories or products.
func (t CouponType) IsScoped() bool {
	switch t {
	case CouponCategoryDiscount, CouponProductDiscount:
		return true
	case CouponPercentage, CouponFixedAmount, CouponFreeShipping, CouponFirstPurchase:
		return false
	default:
		return false
	}
}

func ParseCouponType(value string) (CouponType, error) {
	for _, candidate := range validCouponTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon type %q", value)
}

// CouponStatus is derived from the coupon row, never stored.
type CouponStatus string

const (
	CouponStatusActive    CouponStatus = "active"
	CouponStatusInactive  CouponStatus = "inactive"
	CouponStatusExpired   CouponStatus = "expired"
	CouponStatusExhausted CouponStatus = "exhausted"
)

var validCouponStatuses = []CouponStatus{
	CouponStatusActive,
	CouponStatusInactive,
	CouponStatusExpired,
	CouponStatusExhausted,
}

func (s CouponStatus) IsValid() bool {
	for _, candidate := range validCouponStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseCouponStatus(value string) (CouponStatus, error) {
	for _, candidate := range validCouponStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon status %q", value)
}

// CouponValidationResult is the verdict of the coupon validator.
type CouponValidationResult string

const (
	CouponResultValid                CouponValidationResult = "valid"
	CouponResultNotFound             CouponValidationResult = "not_found"
	CouponResultInactive             CouponValidationResult = "inactive"
	CouponResultNotStarted           CouponValidationResult = "not_started"
	CouponResultExpired              CouponValidationResult = "expired"
	CouponResultUsageLimitExceeded   CouponValidationResult = "usage_limit_exceeded"
	CouponResultUserLimitExceeded    CouponValidationResult = "user_limit_exceeded"
	CouponResultNotFirstPurchase     CouponValidationResult = "not_first_purchase"
	CouponResultMinimumAmountNotMet  CouponValidationResult = "minimum_amount_not_met"
	CouponResultNoApplicableProducts CouponValidationResult = "no_applicable_products"
)

var validCouponValidationResults = []CouponValidationResult{
	CouponResultValid,
	CouponResultNotFound,
	CouponResultInactive,
	CouponResultNotStarted,
	CouponResultExpired,
	CouponResultUsageLimitExceeded,
	CouponResultUserLimitExceeded,
	CouponResultNotFirstPurchase,
	CouponResultMinimumAmountNotMet,
	CouponResultNoApplicableProducts,
}

func (r CouponValidationResult) IsValid() bool {
	for _, candidate := range validCouponValidationResults {
		if candidate == r {
			return true
		}
	}
	return false
}

// Message returns the user-facing text for the verdict.
func (r CouponValidationResult) Message() string {
	switch r {
	case CouponResultValid:
		return "coupon applied"
	case CouponResultNotFound:
		return "coupon not found"
	case CouponResultInactive:
		return "coupon is not active"
	case CouponResultNotStarted:
		return "coupon is not yet valid"
	case CouponResultExpired:
		return "coupon has expired"
	case CouponResultUsageLimitExceeded:
		return "coupon usage limit reached"
	case CouponResultUserLimitExceeded:
		return "you have already used this coupon the maximum number of times"
	case CouponResultNotFirstPurchase:
		return "coupon is only valid on a first purchase"
	case CouponResultMinimumAmountNotMet:
		return "cart subtotal does not meet the coupon minimum"
	case CouponResultNoApplicableProducts:
		return "no items in the cart qualify for this coupon"
	default:
		return "coupon is not valid"
	}
}

func ParseCouponValidationResult(value string) (CouponValidationResult, error) {
	for _, candidate := range validCouponValidationResults {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon validation result %q", value)
}
