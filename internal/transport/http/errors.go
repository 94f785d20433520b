// Package http implements the REST transport over internal/client.Client:
// flag CRUD and evaluation, sync triggering and streaming, and audit
// queries, behind the middleware stack in middleware.go.
//
// Grounded on internal/api/errors.APIError and internal/api/router.go,
// generalized from alert-publishing routes to flag-generic ones.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/flagerrors"
	"github.com/vitaliisemenov/flagcore/pkg/logger"
)

// apiError is the JSON error body every handler in this package returns
// on failure, mirroring internal/api/errors.APIError's shape.
type apiError struct {
	Code      flagerrors.Kind `json:"code"`
	Message   string          `json:"message"`
	TraceID   string          `json:"traceId,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// statusForKind maps a flagerrors.Kind to its HTTP status, mirroring
// APIError.StatusCode's switch.
func statusForKind(kind flagerrors.Kind) int {
	switch kind {
	case flagerrors.NotFound:
		return http.StatusNotFound
	case flagerrors.InvalidType:
		return http.StatusBadRequest
	case flagerrors.Conflict:
		return http.StatusConflict
	case flagerrors.Expired:
		return http.StatusGone
	case flagerrors.NetworkError:
		return http.StatusBadGateway
	case flagerrors.EvaluationError, flagerrors.StorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error response. A *flagerrors.Error
// maps to its own status and code; any other error is reported as an
// opaque internal error so handlers never need to classify plain errors
// themselves.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := flagerrors.StorageError
	message := err.Error()
	if fe, ok := err.(*flagerrors.Error); ok {
		kind = fe.Kind
		message = fe.Message
	}

	resp := errorResponse{Error: apiError{
		Code:      kind,
		Message:   message,
		TraceID:   logger.TraceID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(kind))
	_ = json.NewEncoder(w).Encode(resp)
}

// writeValidationError reports a malformed request body or path, which
// never reaches the façade as a flagerrors.Error.
func writeValidationError(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	resp := errorResponse{Error: apiError{
		Code:      flagerrors.InvalidType,
		Message:   fmt.Sprintf(format, args...),
		TraceID:   logger.TraceID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes v as a 200 JSON response.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
