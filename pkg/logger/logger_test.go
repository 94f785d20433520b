package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/flagcore/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, logger.ParseLevel(input), "input=%q", input)
	}
}

func TestNewProducesWorkingJSONLogger(t *testing.T) {
	l := logger.New(logger.Config{Level: "info", Format: "json", Output: "stdout"})
	require.NotNil(t, l)
	l.Info("smoke test")
}

func TestNewTraceIDIsUnique(t *testing.T) {
	a := logger.NewTraceID()
	b := logger.NewTraceID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "trace_"))
}

func TestWithTraceIDRoundTrip(t *testing.T) {
	ctx := logger.WithTraceID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", logger.TraceID(ctx))
}

func TestTraceIDEmptyWhenAbsent(t *testing.T) {
	assert.Equal(t, "", logger.TraceID(context.Background()))
}

func TestFromContextAttachesTraceID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := logger.WithTraceID(context.Background(), "trace-xyz")
	logger.FromContext(ctx, base).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-xyz", entry["trace_id"])
}

func TestMiddlewareGeneratesAndEchoesTraceID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var seenInHandler string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInHandler = logger.TraceID(r.Context())
		w.WriteHeader(http.StatusCreated)
	})

	handler := logger.Middleware(base)(next)
	req := httptest.NewRequest(http.MethodPost, "/v1/flags", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, seenInHandler)
	assert.Equal(t, seenInHandler, rec.Header().Get("X-Trace-Id"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, float64(201), entry["status"])
}

func TestMiddlewareReusesInboundTraceID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "inbound-id", logger.TraceID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	handler := logger.Middleware(base)(next)
	req := httptest.NewRequest(http.MethodGet, "/v1/flags/foo", nil)
	req.Header.Set("X-Trace-Id", "inbound-id")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, "inbound-id", rec.Header().Get("X-Trace-Id"))
}
