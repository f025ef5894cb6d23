package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopcore/api/controllers"
	"github.com/angelmondragon/shopcore/api/middleware"
	"github.com/angelmondragon/shopcore/internal/app"
	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/logger"
	pkgredis "github.com/angelmondragon/shopcore/pkg/redis"
)

// RouterParams wires the HTTP surface. Nil stores disable idempotency replay
// and rate limiting; a nil Metrics handler falls back to the default registry.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Services    *app.Services
	Idempotency pkgredis.IdempotencyStore
	RateLimits  middleware.RateLimitStore
	Readiness   []controllers.ReadinessCheck
	Metrics     http.Handler
}

func NewRouter(params RouterParams) http.Handler {
	cfg, logg, svc := params.Config, params.Logger, params.Services

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Actor(logg),
	)

	idempotent := middleware.Idempotency(params.Idempotency, logg)
	couponValidatePolicy := middleware.NewRateLimitPolicy(
		"coupon-validate",
		cfg.Coupons.ValidateWindow,
		cfg.Coupons.ValidateIPLimit,
		cfg.Coupons.ValidateUserLimit,
	)

	metricsHandler := params.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Readiness...))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/availability", controllers.ProductAvailabilityBatch(svc.Inventory, logg))
			r.Get("/{productId}/availability", controllers.ProductAvailability(svc.Inventory, logg))
			r.Get("/{productId}/movements", controllers.ProductMovements(svc.Inventory, logg))
			r.With(middleware.RequireActor(logg), idempotent).Put("/{productId}/stock", controllers.AdjustProductStock(svc.Inventory, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.ReserveStock(svc.Inventory, logg))
			r.Post("/release-expired", controllers.ReleaseExpiredReservations(svc.Inventory, logg))
			r.Post("/{reservationId}/release", controllers.ReleaseReservation(svc.Inventory, logg))
			r.Post("/{reservationId}/confirm", controllers.ConfirmReservation(svc.Inventory, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.With(middleware.RequireActor(logg), middleware.RateLimit(couponValidatePolicy, params.RateLimits, logg)).
				Post("/validate", controllers.ValidateCoupon(svc.Coupons, logg))
			r.With(idempotent).Post("/{couponId}/usages", controllers.RecordCouponUsage(svc.Coupons, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor(logg))

			r.Route("/carts", func(r chi.Router) {
				r.Post("/", controllers.CreateCart(svc.Carts, logg))
				r.Get("/{cartId}", controllers.GetCart(svc.Carts, logg))
				r.With(idempotent).Post("/{cartId}/items", controllers.AddCartItem(svc.Carts, logg))
				r.Delete("/{cartId}/items/{productId}", controllers.RemoveCartItem(svc.Carts, logg))
				r.Post("/{cartId}/coupon", controllers.ApplyCartCoupon(svc.Coupons, logg))
				r.Delete("/{cartId}/coupon", controllers.RemoveCartCoupon(svc.Carts, svc.Coupons, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.Checkout(svc.Orders, logg))
				r.With(idempotent).Post("/{orderId}/paid", controllers.MarkOrderPaid(svc.Orders, logg))
				r.With(idempotent).Post("/{orderId}/cancel", controllers.CancelOrder(svc.Orders, logg))
			})
		})
	})

	return r
}
