// Package ratelimit caps how often one caller may hit the consent API.
//
// Callers are bucketed by who they are, not where they connect from: a
// patient by patient ID, staff and organizations by actor, and anonymous
// traffic by client IP. Each bucket is a sliding window so a burst straddling
// a window boundary cannot double the allowance.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"checkin/pkg/platform/httputil"
	"checkin/pkg/requestcontext"
)

// Class groups routes that share an allowance.
type Class string

const (
	// ClassRead covers status lookups and access checks.
	ClassRead Class = "read"
	// ClassWrite covers grants, withdrawals, renewals and policy updates.
	ClassWrite Class = "write"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees a slot.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Limits is the per-class allowance within Window.
type Limits struct {
	Window time.Duration
	PerKey map[Class]int
}

type Metrics struct {
	Rejected *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_http_rate_limited_total",
			Help: "Requests rejected by the per-caller rate limiter",
		}, []string{"class"}),
	}
}

func (m *Metrics) incRejected(class Class) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(string(class)).Inc()
}

// Middleware enforces Limits against a Store.
type Middleware struct {
	store   Store
	limits  Limits
	logger  *slog.Logger
	metrics *Metrics
	clock   func() time.Time
}

type Option func(*Middleware)

func WithMetrics(m *Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(mw *Middleware) {
		if clock != nil {
			mw.clock = clock
		}
	}
}

func New(store Store, limits Limits, logger *slog.Logger, opts ...Option) *Middleware {
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	m := &Middleware{
		store:  store,
		limits: limits,
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Limit returns middleware for routes in class. It must run after caller
// identity has been resolved. Store failures let the request through.
func (m *Middleware) Limit(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limit := m.limits.PerKey[class]
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := callerKey(ctx, class)
			now := m.clock()

			result, err := m.store.Allow(ctx, key, limit, m.limits.Window, now)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"class", string(class),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				m.metrics.incRejected(class)
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
				)
				retryAfter := result.RetryAfter(now)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":       "rate_limit_exceeded",
					"message":     "too many requests, try again later",
					"retry_after": retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(ctx context.Context, class Class) string {
	prefix := "checkin:ratelimit:" + string(class) + ":"
	if patientID := requestcontext.PatientID(ctx); !patientID.IsNil() {
		return prefix + "patient:" + patientID.String()
	}
	if actor := requestcontext.Actor(ctx); actor != "" {
		return prefix + "actor:" + actor
	}
	return prefix + "ip:" + requestcontext.ClientIP(ctx)
}
