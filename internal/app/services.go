package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/internal/coupons"
	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/internal/orders"
	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/metrics"
	"github.com/angelmondragon/shopcore/pkg/outbox"
)

// Services is the domain layer shared by the API and the cron worker.
type Services struct {
	Inventory inventory.Service
	Coupons   coupons.Service
	Carts     cart.Service
	Orders    orders.Service
	Outbox    *outbox.Repository
}

// NewServices wires repositories and services on top of one database client.
// A nil registerer disables metrics.
func NewServices(cfg *config.Config, dbClient *db.Client, logg *logger.Logger, reg prometheus.Registerer) (*Services, error) {
	if cfg == nil || dbClient == nil || logg == nil {
		return nil, fmt.Errorf("config, db client and logger are required")
	}
	conn := dbClient.DB()

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		DB:             dbClient,
		Repo:           inventory.NewRepository(conn),
		Ledger:         ledgerSvc,
		Outbox:         emitter,
		Logger:         logg,
		Metrics:        metrics.NewInventoryMetrics(reg),
		DefaultTTL:     cfg.Inventory.ReservationTTLOrDefault(),
		SweepBatchSize: cfg.Inventory.SweepBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}

	cartRepo := cart.NewRepository(conn)
	couponSvc, err := coupons.NewService(coupons.ServiceParams{
		DB:      dbClient,
		Repo:    coupons.NewRepository(conn),
		Carts:   cartRepo,
		Outbox:  emitter,
		Logger:  logg,
		Metrics: metrics.NewCouponMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("coupon service: %w", err)
	}

	cartSvc, err := cart.NewService(cartRepo, dbClient, inventorySvc, logg)
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}

	orderSvc, err := orders.NewService(orders.ServiceParams{
		DB:        dbClient,
		Repo:      orders.NewRepository(conn),
		Carts:     cartRepo,
		Inventory: inventorySvc,
		Coupons:   couponSvc,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	return &Services{
		Inventory: inventorySvc,
		Coupons:   couponSvc,
		Carts:     cartSvc,
		Orders:    orderSvc,
		Outbox:    outboxRepo,
	}, nil
}
