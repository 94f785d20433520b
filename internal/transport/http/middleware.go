package http

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/vitaliisemenov/flagcore/internal/flagerrors"
	"github.com/vitaliisemenov/flagcore/pkg/logger"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flagcore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// MetricsMiddleware records request count and duration against the
// matched mux route template rather than the raw path, keeping flag
// keys out of the metric's label cardinality, unlike the teacher's
// normalizeEndpoint (a TODO stub there) which records the raw path
// verbatim.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routeTemplate returns the matched mux route's path template
// ("/v1/flags/{key}") falling back to the raw path when the router
// hasn't matched yet (e.g. a 404 with no registered route).
func routeTemplate(r *http.Request) string {
	if route := routeFromContext(r); route != "" {
		return route
	}
	return r.URL.Path
}

// RecoveryMiddleware recovers panics from downstream handlers, logs the
// stack trace, and returns a well-formed 500 instead of closing the
// connection, grounded on pkg/history/middleware.RecoveryMiddleware.
func RecoveryMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						"trace_id", logger.TraceID(r.Context()),
						"error", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(errorResponse{Error: apiError{
						Code:      flagerrors.EvaluationError,
						Message:   "internal error",
						TraceID:   logger.TraceID(r.Context()),
						Timestamp: time.Now().UTC().Format(time.RFC3339),
					}})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter hands out a token-bucket limiter per client, grounded on
// internal/api/middleware.RateLimiter, generalized from an API-key-aware
// client ID to IP-only (flagcore's façade has no auth/user layer).
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter constructs a RateLimiter allowing requestsPerMinute
// sustained throughput per client, with burst headroom above it.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

// getLimiter returns clientID's limiter, creating it on first use.
func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.limiters[clientID]
	rl.mu.RUnlock()
	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok = rl.limiters[clientID]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[clientID] = limiter
	return limiter
}

// Cleanup drops per-client limiters, called periodically by a caller
// holding a long-lived RateLimiter to bound its memory, the same
// responsibility the teacher gives RateLimiter.Cleanup (there run on a
// background ticker by RateLimitMiddleware itself).
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters = make(map[string]*rate.Limiter)
}

// Middleware rejects requests from a client exceeding its rate with 429,
// once that client's limiter has no tokens left.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := clientIP(r)
		limiter := rl.getLimiter(clientID)
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: apiError{
				Code:      flagerrors.EvaluationError,
				Message:   "rate limit exceeded, retry later",
				TraceID:   logger.TraceID(r.Context()),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the requesting client's address, preferring
// X-Forwarded-For (set by a load balancer) over RemoteAddr, mirroring
// the teacher's getClientID fallback chain minus the API-key lookup.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
