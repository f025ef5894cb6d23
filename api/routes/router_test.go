package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/api/controllers"
	"github.com/angelmondragon/shopcore/api/middleware"
	"github.com/angelmondragon/shopcore/internal/app"
	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) DelIfValue(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryStore) RateLimitKey(scope string) string {
	return "rl:" + scope
}

type harness struct {
	handler http.Handler
	conn    *gorm.DB
	store   *memoryStore
}

func newHarness(t *testing.T, readiness ...controllers.ReadinessCheck) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		Coupons: config.CouponsConfig{
			ValidateWindow:    time.Minute,
			ValidateUserLimit: 2,
		},
	}
	reg := prometheus.NewRegistry()
	services, err := app.NewServices(cfg, db.FromGorm(conn), logger.Nop(), reg)
	require.NoError(t, err)

	store := newMemoryStore()
	handler := NewRouter(RouterParams{
		Config:      cfg,
		Logger:      logger.Nop(),
		Services:    services,
		Idempotency: store,
		RateLimits:  store,
		Readiness:   readiness,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &harness{handler: handler, conn: conn, store: store}
}

func (h *harness) do(t *testing.T, method, path string, userID uuid.UUID, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set(middleware.ActorHeader, userID.String())
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) seedProduct(t *testing.T, stock, minStock int, price int64) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:      "SKU-" + uuid.NewString()[:8],
		Name:     "Widget",
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		MinStock: minStock,
	}
	require.NoError(t, h.conn.Create(product).Error)
	return product
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, controllers.ReadinessCheck{Name: "db", Pinger: stubPinger{}})

	live := h.do(t, http.MethodGet, "/health/live", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "test", live.Header().Get("X-Shopcore-Env"))

	ready := h.do(t, http.MethodGet, "/health/ready", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, ready.Code)

	metrics := h.do(t, http.MethodGet, "/metrics", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, metrics.Code)
}

func TestHealthReadyReportsDependencyOutage(t *testing.T) {
	h := newHarness(t,
		controllers.ReadinessCheck{Name: "db", Pinger: stubPinger{}},
		controllers.ReadinessCheck{Name: "redis", Pinger: stubPinger{err: errors.New("connection refused")}},
	)

	rec := h.do(t, http.MethodGet, "/health/ready", uuid.Nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestCartRoutesRequireActor(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/carts", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, rec))
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, 10, 5, 20)
	userID := uuid.New()
	cartID := uuid.New()

	rec := h.do(t, http.MethodPost, "/api/v1/reservations", userID, map[string]any{
		"product_id": product.ID,
		"quantity":   4,
		"holder":     map[string]any{"type": "cart", "id": cartID},
	}, "Idempotency-Key", "reserve-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reservation struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	decodeData(t, rec, &reservation)
	assert.Equal(t, string(enums.ReservationActive), reservation.Status)

	avail := h.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/availability?quantity=7", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, avail.Code)
	var picture struct {
		AvailableStock    int  `json:"available_stock"`
		ReservedStock     int  `json:"reserved_stock"`
		CanFulfillRequest bool `json:"can_fulfill_request"`
	}
	decodeData(t, avail, &picture)
	assert.Equal(t, 6, picture.AvailableStock)
	assert.Equal(t, 4, picture.ReservedStock)
	assert.False(t, picture.CanFulfillRequest)

	release := h.do(t, http.MethodPost, "/api/v1/reservations/"+reservation.ID.String()+"/release", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, release.Code)
	var released struct {
		Released bool `json:"released"`
	}
	decodeData(t, release, &released)
	assert.True(t, released.Released)

	again := h.do(t, http.MethodPost, "/api/v1/reservations/"+reservation.ID.String()+"/release", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, again.Code)
	decodeData(t, again, &released)
	assert.False(t, released.Released)

	avail = h.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/availability", uuid.Nil, nil)
	decodeData(t, avail, &picture)
	assert.Equal(t, 10, picture.AvailableStock)
}

func TestReserveInsufficientStockReturnsDetails(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, 2, 0, 20)

	rec := h.do(t, http.MethodPost, "/api/v1/reservations", uuid.New(), map[string]any{
		"product_id": product.ID,
		"quantity":   3,
		"holder":     map[string]any{"type": "cart", "id": uuid.New()},
	}, "Idempotency-Key", "reserve-too-many")

	require.Equal(t, http.StatusConflict, rec.Code)
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Available int `json:"available"`
				Requested int `json:"requested"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), envelope.Error.Code)
	assert.Equal(t, 2, envelope.Error.Details.Available)
	assert.Equal(t, 3, envelope.Error.Details.Requested)
}

func TestAdjustStockAndMovements(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, 10, 2, 20)
	admin := uuid.New()

	rec := h.do(t, http.MethodPut, "/api/v1/products/"+product.ID.String()+"/stock", admin, map[string]any{
		"new_stock": 25,
		"reason":    "restock",
	}, "Idempotency-Key", "adjust-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	movements := h.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/movements", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, movements.Code)
	var rows []struct {
		Type        string `json:"type"`
		StockBefore int    `json:"stock_before"`
		StockAfter  int    `json:"stock_after"`
	}
	decodeData(t, movements, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].StockBefore)
	assert.Equal(t, 25, rows[0].StockAfter)
}

func TestMovementsPageNewestFirst(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, 10, 2, 20)
	admin := uuid.New()

	for i, stock := range []int{12, 15, 11} {
		rec := h.do(t, http.MethodPut, "/api/v1/products/"+product.ID.String()+"/stock", admin, map[string]any{
			"new_stock": stock,
			"reason":    "restock",
		}, "Idempotency-Key", fmt.Sprintf("adjust-%d", i))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	type movementRow struct {
		StockBefore int `json:"stock_before"`
		StockAfter  int `json:"stock_after"`
	}
	list := func(query string) []movementRow {
		t.Helper()
		rec := h.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/movements"+query, uuid.Nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rows []movementRow
		decodeData(t, rec, &rows)
		return rows
	}

	latest := list("?limit=1")
	require.Len(t, latest, 1)
	assert.Equal(t, 11, latest[0].StockAfter)

	previous := list("?limit=1&offset=1")
	require.Len(t, previous, 1)
	assert.Equal(t, 15, previous[0].StockAfter)

	oldest := list("?limit=1&order=asc")
	require.Len(t, oldest, 1)
	assert.Equal(t, 10, oldest[0].StockBefore)

	bad := h.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/movements?order=sideways", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, bad))
}

func TestReleaseExpiredReportsListingFailure(t *testing.T) {
	h := newHarness(t)

	ok := h.do(t, http.MethodPost, "/api/v1/reservations/release-expired", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	var counts map[string]int
	decodeData(t, ok, &counts)
	assert.Equal(t, 0, counts["released"])
	assert.Equal(t, 0, counts["failed"])

	require.NoError(t, h.conn.Migrator().DropTable(&models.StockReservation{}))

	broken := h.do(t, http.MethodPost, "/api/v1/reservations/release-expired", uuid.Nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, broken.Code, broken.Body.String())
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, broken))
}

func TestCartCheckoutFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, 10, 2, 25)
	require.NoError(t, h.conn.Create(&models.Coupon{
		Code:          "SAVE10",
		Type:          enums.CouponPercentage,
		DiscountValue: decimal.NewFromInt(10),
		Active:        true,
	}).Error)
	userID := uuid.New()

	created := h.do(t, http.MethodPost, "/api/v1/carts", userID, nil)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var cart struct {
		ID uuid.UUID `json:"id"`
	}
	decodeData(t, created, &cart)
	cartPath := "/api/v1/carts/" + cart.ID.String()

	added := h.do(t, http.MethodPost, cartPath+"/items", userID, map[string]any{
		"product_id": product.ID,
		"quantity":   2,
	}, "Idempotency-Key", "add-1")
	require.Equal(t, http.StatusOK, added.Code, added.Body.String())

	stranger := h.do(t, http.MethodGet, cartPath, uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, stranger.Code)

	applied := h.do(t, http.MethodPost, cartPath+"/coupon", userID, map[string]any{"code": "save10"})
	require.Equal(t, http.StatusOK, applied.Code, applied.Body.String())
	var verdict struct {
		IsValid  bool `json:"is_valid"`
		Discount struct {
			Amount decimal.Decimal `json:"amount"`
		} `json:"discount"`
	}
	decodeData(t, applied, &verdict)
	require.True(t, verdict.IsValid)
	assert.True(t, decimal.NewFromInt(5).Equal(verdict.Discount.Amount))

	second := h.do(t, http.MethodPost, cartPath+"/coupon", userID, map[string]any{"code": "SAVE10"})
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, string(pkgerrors.CodeCouponAlreadyApplied), errorCode(t, second))

	checkout := h.do(t, http.MethodPost, "/api/v1/orders", userID, map[string]any{"cart_id": cart.ID}, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, checkout.Code, checkout.Body.String())
	var order struct {
		ID    uuid.UUID       `json:"id"`
		Total decimal.Decimal `json:"total"`
	}
	decodeData(t, checkout, &order)
	assert.True(t, decimal.NewFromInt(45).Equal(order.Total))

	replay := h.do(t, http.MethodPost, "/api/v1/orders", userID, map[string]any{"cart_id": cart.ID}, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, replay.Code)
	var replayed struct {
		ID uuid.UUID `json:"id"`
	}
	decodeData(t, replay, &replayed)
	assert.Equal(t, order.ID, replayed.ID)

	var orderCount int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)

	again := h.do(t, http.MethodPost, "/api/v1/orders", userID, map[string]any{"cart_id": cart.ID}, "Idempotency-Key", "checkout-2")
	assert.Equal(t, http.StatusUnprocessableEntity, again.Code, again.Body.String())
	assert.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, again))

	closed := h.do(t, http.MethodPost, cartPath+"/items", userID, map[string]any{
		"product_id": product.ID,
		"quantity":   1,
	}, "Idempotency-Key", "add-2")
	assert.Equal(t, http.StatusUnprocessableEntity, closed.Code, closed.Body.String())

	paid := h.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/paid", userID, nil, "Idempotency-Key", "paid-1")
	require.Equal(t, http.StatusOK, paid.Code, paid.Body.String())

	var stored models.Product
	require.NoError(t, h.conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 8, stored.Stock)
}

func TestValidateCouponIsRateLimitedPerUser(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	require.NoError(t, h.conn.Create(&models.Coupon{
		Code:          "TENOFF",
		Type:          enums.CouponFixedAmount,
		DiscountValue: decimal.NewFromInt(10),
		Active:        true,
	}).Error)

	body := map[string]any{"code": "TENOFF", "subtotal": "100"}
	for i := 0; i < 2; i++ {
		rec := h.do(t, http.MethodPost, "/api/v1/coupons/validate", userID, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	blocked := h.do(t, http.MethodPost, "/api/v1/coupons/validate", userID, body)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, blocked))
}
