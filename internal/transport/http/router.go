package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vitaliisemenov/flagcore/internal/audit"
	"github.com/vitaliisemenov/flagcore/internal/client"
	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
	"github.com/vitaliisemenov/flagcore/internal/sync/sse"
	"github.com/vitaliisemenov/flagcore/pkg/logger"
)

// Config controls which optional middleware NewRouter installs, mirroring
// internal/api.RouterConfig's enable-flags shape, pared down to the
// concerns flagcore's transport actually has (no auth/CORS/compression
// tiers -- those belong to a host embedding the router, not the façade).
type Config struct {
	Client   *client.Client
	AuditLog *audit.Log
	Logger   *slog.Logger

	// Broadcaster, if non-nil, serves GET /v1/sync/stream for downstream
	// nodes. A nil Broadcaster omits that route entirely.
	Broadcaster *sse.Broadcaster

	// Poller, if non-nil, backs POST /v1/sync: the handler runs one
	// synchronous Poll against the configured RemoteSource instead of
	// requiring the caller to supply a batch body.
	Poller *flagsync.Poller

	EnableMetrics   bool
	EnableRateLimit bool
	EvaluateRPM     int
	EvaluateBurst   int
}

// DefaultConfig returns a Config with metrics and evaluate-path rate
// limiting enabled at reasonable defaults.
func DefaultConfig(c *client.Client, auditLog *audit.Log, log *slog.Logger) Config {
	return Config{
		Client:          c,
		AuditLog:        auditLog,
		Logger:          log,
		EnableMetrics:   true,
		EnableRateLimit: true,
		EvaluateRPM:     600,
		EvaluateBurst:   50,
	}
}

// NewRouter builds the REST surface over Config.Client: flag CRUD and
// evaluation, sync triggering/streaming, and audit queries. Middleware
// order: trace-ID + logging (always), recovery (always), metrics (if
// enabled), route-specific rate limiting on /evaluate (if enabled).
func NewRouter(cfg Config) *mux.Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handlers{client: cfg.Client, auditLog: cfg.AuditLog, logger: cfg.Logger, broadcaster: cfg.Broadcaster, poller: cfg.Poller}

	router := mux.NewRouter()
	router.Use(logger.Middleware(cfg.Logger))
	router.Use(RecoveryMiddleware(cfg.Logger))
	if cfg.EnableMetrics {
		router.Use(MetricsMiddleware)
	}

	v1 := router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/flags", h.createFlag).Methods(http.MethodPost)
	v1.HandleFunc("/flags/{key}", h.getFlag).Methods(http.MethodGet)
	v1.HandleFunc("/flags/{key}", h.updateFlag).Methods(http.MethodPut)
	v1.HandleFunc("/flags/{key}", h.deleteFlag).Methods(http.MethodDelete)
	v1.HandleFunc("/flags/{key}/enable", h.enableFlag).Methods(http.MethodPost)
	v1.HandleFunc("/flags/{key}/disable", h.disableFlag).Methods(http.MethodPost)

	evaluate := v1.HandleFunc("/flags/{key}/evaluate", h.evaluateFlag).Methods(http.MethodPost)
	if cfg.EnableRateLimit {
		rpm, burst := cfg.EvaluateRPM, cfg.EvaluateBurst
		if rpm <= 0 {
			rpm = 600
		}
		if burst <= 0 {
			burst = 50
		}
		limiter := NewRateLimiter(rpm, burst)
		evaluate.Handler(limiter.Middleware(http.HandlerFunc(h.evaluateFlag)))
	}

	v1.HandleFunc("/sync", h.triggerSync).Methods(http.MethodPost)
	v1.HandleFunc("/audit", h.queryAudit).Methods(http.MethodGet)

	if cfg.Broadcaster != nil {
		v1.Handle("/sync/stream", cfg.Broadcaster).Methods(http.MethodGet)
	}

	return router
}

// routeFromContext returns the matched route's path template, used by
// MetricsMiddleware to avoid flag keys leaking into metric labels.
func routeFromContext(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tmpl
}
