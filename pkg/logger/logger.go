// Package logger builds structured slog loggers from configuration,
// with optional lumberjack file rotation and a trace-ID propagation
// helper shared by the HTTP transport and the sync subsystem.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ctxKey is an unexported context key type so values set by this
// package can't collide with keys set elsewhere.
type ctxKey int

const traceIDKey ctxKey = iota

// Config holds logger configuration; internal/config.LogConfig carries
// the same fields loaded from FLAGCORE_LOG_* and converts to this type.
type Config struct {
	Level      string
	Format     string
	Output     string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// New builds a *slog.Logger from cfg. Debug level enables source
// location; json is the default format for anything but "text".
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: ParseLevel(cfg.Level) == slog.LevelDebug,
	}

	writer := buildWriter(cfg)
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info
// for anything unrecognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildWriter resolves cfg.Output to a destination writer. "file"
// without a filename falls back to stdout rather than erroring, since
// logging setup must never itself be a reason the process fails to
// start.
func buildWriter(cfg Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "file":
		if cfg.Filename == "" {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	case "stderr":
		return os.Stderr
	default:
		return os.Stdout
	}
}

// NewTraceID returns a random 16-hex-character ID, falling back to a
// timestamp-derived one if the CSPRNG is unavailable.
func NewTraceID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("trace_%d", time.Now().UnixNano())
	}
	return "trace_" + hex.EncodeToString(buf)
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from ctx, returning "" if absent.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns logger with the context's trace ID attached as a
// field, or logger unchanged if ctx carries none.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := TraceID(ctx); id != "" {
		return logger.With("trace_id", id)
	}
	return logger
}

// Middleware returns HTTP middleware that assigns a trace ID (reusing
// an inbound X-Trace-Id header if present), logs the request, and
// echoes the ID back in the response header.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get("X-Trace-Id")
			if traceID == "" {
				traceID = NewTraceID()
			}
			r = r.WithContext(WithTraceID(r.Context(), traceID))
			w.Header().Set("X-Trace-Id", traceID)

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration", time.Since(start),
				"trace_id", traceID,
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// statusRecorder captures the status code an http.Handler writes so
// Middleware can log it after ServeHTTP returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
