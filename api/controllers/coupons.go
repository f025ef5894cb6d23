package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore/api/middleware"
	"github.com/angelmondragon/shopcore/api/responses"
	"github.com/angelmondragon/shopcore/api/validators"
	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/internal/coupons"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

const maxCouponCodeLength = 64

type validateCouponRequest struct {
	Code            string             `json:"code" validate:"required,max=64"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Items           []coupons.LineItem `json:"items" validate:"dive"`
	IsFirstPurchase *bool              `json:"is_first_purchase,omitempty"`
}

// ValidateCoupon previews a coupon against an arbitrary basket for the calling user.
// An unusable coupon is a 200 with is_valid=false.
func ValidateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ValidateCoupon(r.Context(), coupons.ValidationRequest{
			Code:            validators.SanitizeString(payload.Code, maxCouponCodeLength),
			UserID:          middleware.ActorFromContext(r.Context()),
			Subtotal:        payload.Subtotal,
			Items:           payload.Items,
			IsFirstPurchase: payload.IsFirstPurchase,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// ApplyCartCoupon attaches a coupon to the caller's cart.
func ApplyCartCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.ParseUUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyToCart(r.Context(), cartID, validators.SanitizeString(payload.Code, maxCouponCodeLength), middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RemoveCartCoupon detaches the coupon from the caller's cart. Removing from a
// cart without a coupon reports removed=false.
func RemoveCartCoupon(carts cart.Service, svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := loadOwnedCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		removed, err := svc.RemoveFromCart(r.Context(), c.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"cart_id": c.ID,
			"removed": removed,
		})
	}
}

type recordUsageRequest struct {
	UserID         uuid.UUID       `json:"user_id" validate:"required"`
	OrderID        uuid.UUID       `json:"order_id" validate:"required"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// RecordCouponUsage writes one redemption. A repeat for the same order returns
// the stored usage with 200; a new one returns 201.
func RecordCouponUsage(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		couponID, err := validators.ParseUUIDParam(r, "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload recordUsageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		usage, recorded, err := svc.RecordUsage(r.Context(), coupons.RecordUsageInput{
			CouponID:       couponID,
			UserID:         payload.UserID,
			OrderID:        payload.OrderID,
			DiscountAmount: payload.DiscountAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if recorded {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, newUsageResponse(usage, recorded))
	}
}
