package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

type fakeSweeper struct {
	calls     int
	productID *uuid.UUID
	released  int
	err       error
}

func (f *fakeSweeper) ReleaseExpired(ctx context.Context, productID *uuid.UUID) (int, error) {
	f.calls++
	f.productID = productID
	return f.released, f.err
}

func TestReservationExpiryJobSweepsAllProducts(t *testing.T) {
	sweeper := &fakeSweeper{released: 4}
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{Logger: logger.Nop(), Inventory: sweeper})
	if err != nil {
		t.Fatalf("NewReservationExpiryJob: %v", err)
	}
	if job.Name() != "reservation-expiry" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
	if sweeper.productID != nil {
		t.Fatalf("expected a global sweep, got product %s", sweeper.productID)
	}
}

func TestReservationExpiryJobReportsPartialFailure(t *testing.T) {
	sweeper := &fakeSweeper{
		released: 2,
		err:      &inventory.SweepError{Failed: []error{errors.New("row a"), errors.New("row b")}},
	}
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{Logger: logger.Nop(), Inventory: sweeper})
	if err != nil {
		t.Fatalf("NewReservationExpiryJob: %v", err)
	}
	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var partial *inventory.SweepError
	if !errors.As(err, &partial) {
		t.Fatalf("expected sweep error, got %v", err)
	}
	if got := len(partial.Failed); got != 2 {
		t.Fatalf("expected both row failures preserved, got %d", got)
	}
}

func TestReservationExpiryJobFailsWhenListingFails(t *testing.T) {
	listErr := errors.New("connection refused")
	sweeper := &fakeSweeper{err: listErr}
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{Logger: logger.Nop(), Inventory: sweeper})
	if err != nil {
		t.Fatalf("NewReservationExpiryJob: %v", err)
	}
	err = job.Run(context.Background())
	if !errors.Is(err, listErr) {
		t.Fatalf("expected listing error, got %v", err)
	}
	var partial *inventory.SweepError
	if errors.As(err, &partial) {
		t.Fatal("listing failure must not look like a partial sweep")
	}
}

func TestNewReservationExpiryJobRequiresInventory(t *testing.T) {
	if _, err := NewReservationExpiryJob(ReservationExpiryJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without inventory service")
	}
}
