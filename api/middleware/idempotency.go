package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopcore/api/responses"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	pkgredis "github.com/angelmondragon/shopcore/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// idempotencyClaimTTL bounds how long a crashed request can block its key.
	idempotencyClaimTTL = time.Minute
)

// idempotentRoute pairs a method and a chi pattern with the replay window.
// Placeholder segments such as {orderId} match any single path segment.
type idempotentRoute struct {
	method   string
	segments []string
	ttl      time.Duration
}

func route(method, pattern string, ttl time.Duration) idempotentRoute {
	return idempotentRoute{method: method, segments: splitPath(pattern), ttl: ttl}
}

var idempotentRoutes = []idempotentRoute{
	route(http.MethodPost, "/api/v1/reservations", defaultIdempotencyTTL),
	route(http.MethodPut, "/api/v1/products/{id}/stock", defaultIdempotencyTTL),
	route(http.MethodPost, "/api/v1/carts/{id}/items", defaultIdempotencyTTL),
	route(http.MethodPost, "/api/v1/coupons/{id}/usages", defaultIdempotencyTTL),
	route(http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL),
	route(http.MethodPost, "/api/v1/orders/{id}/paid", criticalIdempotencyTTL),
	route(http.MethodPost, "/api/v1/orders/{id}/cancel", criticalIdempotencyTTL),
}

func (rt idempotentRoute) matches(method string, segments []string) bool {
	if rt.method != method || len(rt.segments) != len(segments) {
		return false
	}
	for i, want := range rt.segments {
		if strings.HasPrefix(want, "{") && strings.HasSuffix(want, "}") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if want != segments[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if strings.Trim(pattern, "/") == "" {
		return 0, false
	}
	segments := splitPath(pattern)
	for _, rt := range idempotentRoutes {
		if rt.matches(method, segments) {
			return rt.ttl, true
		}
	}
	return 0, false
}

// storedResponse is what lives under an idempotency key. While the first
// request runs the entry is a claim carrying only a token.
type storedResponse struct {
	ClaimToken  string `json:"claim_token,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

func (s storedResponse) inFlight() bool {
	return s.ClaimToken != ""
}

func (s storedResponse) encode() string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	if body, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(body)
	}
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on the routes listed in idempotentRoutes. A duplicate that
// arrives while the first request is still running gets a conflict, and a
// server fault releases the key so the client can retry it.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			digest := sha256.Sum256(body)
			claim := storedResponse{
				ClaimToken:  uuid.NewString(),
				RequestHash: base64.StdEncoding.EncodeToString(digest[:]),
			}
			key := store.IdempotencyKey(buildScope(r), clientKey)
			claimed, err := store.SetNX(ctx, key, claim.encode(), idempotencyClaimTTL)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				existing, err := loadStored(r, store, key)
				if err != nil {
					fail(err)
					return
				}
				switch {
				case existing == nil:
					// The claim expired between SETNX and GET.
					fail(pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
				case existing.RequestHash != claim.RequestHash:
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				case existing.inFlight():
					fail(pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
				default:
					existing.replay(w)
				}
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				if _, err := store.DelIfValue(ctx, key, claim.encode()); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency claim", err)
				}
				return
			}
			final := storedResponse{
				RequestHash: claim.RequestHash,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			}
			if err := store.Set(ctx, key, final.encode(), ttl); err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func loadStored(r *http.Request, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(r.Context(), key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &stored, nil
}

// buildScope keys records per actor and concrete path so two users can
// share an Idempotency-Key value.
func buildScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
