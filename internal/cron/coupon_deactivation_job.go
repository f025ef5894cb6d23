package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopcore/pkg/logger"
)

type couponDeactivator interface {
	DeactivateExpired(ctx context.Context) (int, error)
}

type CouponDeactivationJobParams struct {
	Logger  *logger.Logger
	Coupons couponDeactivator
}

// NewCouponDeactivationJob flips active coupons past their expiry to inactive.
func NewCouponDeactivationJob(params CouponDeactivationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	return &couponDeactivationJob{logg: params.Logger, coupons: params.Coupons}, nil
}

type couponDeactivationJob struct {
	logg    *logger.Logger
	coupons couponDeactivator
}

func (j *couponDeactivationJob) Name() string { return "coupon-deactivation" }

func (j *couponDeactivationJob) Run(ctx context.Context) error {
	n, err := j.coupons.DeactivateExpired(ctx)
	if err != nil {
		return fmt.Errorf("deactivate expired coupons: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "deactivated", n), "coupon deactivation complete")
	return nil
}
