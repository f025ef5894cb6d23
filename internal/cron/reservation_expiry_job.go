package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

type reservationSweeper interface {
	ReleaseExpired(ctx context.Context, productID *uuid.UUID) (int, error)
}

type ReservationExpiryJobParams struct {
	Logger    *logger.Logger
	Inventory reservationSweeper
}

// NewReservationExpiryJob returns the job that releases every active hold past its expiry.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &reservationExpiryJob{logg: params.Logger, inventory: params.Inventory}, nil
}

type reservationExpiryJob struct {
	logg      *logger.Logger
	inventory reservationSweeper
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	released, err := j.inventory.ReleaseExpired(ctx, nil)
	failed := 0
	var partial *inventory.SweepError
	if errors.As(err, &partial) {
		failed = len(partial.Failed)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"released": released,
		"failed":   failed,
	})
	if err != nil {
		return fmt.Errorf("release expired reservations: %w", err)
	}
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return nil
}
