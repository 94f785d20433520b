package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitaliisemenov/flagcore/internal/audit"
	"github.com/vitaliisemenov/flagcore/internal/client"
	"github.com/vitaliisemenov/flagcore/internal/flagerrors"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
	"github.com/vitaliisemenov/flagcore/internal/sync/sse"
)

// actorHeader names the header callers use to attribute a mutation to
// an actor for the audit log, in lieu of an auth layer this transport
// doesn't implement (spec.md's façade takes actorID as a plain
// parameter; a host wiring real auth would populate it from a verified
// principal instead of this header).
const actorHeader = "X-Flagcore-Actor"

// handlers holds the façade and transports every route closes over.
type handlers struct {
	client      *client.Client
	auditLog    *audit.Log
	logger      *slog.Logger
	broadcaster *sse.Broadcaster
	poller      *flagsync.Poller
}

func actorID(r *http.Request) string {
	if a := r.Header.Get(actorHeader); a != "" {
		return a
	}
	return "anonymous"
}

func pathKey(r *http.Request) string {
	return mux.Vars(r)["key"]
}

func (h *handlers) createFlag(w http.ResponseWriter, r *http.Request) {
	var flag flagtypes.Flag
	if err := json.NewDecoder(r.Body).Decode(&flag); err != nil {
		writeValidationError(w, r, "malformed flag body: %v", err)
		return
	}

	entry, err := h.client.CreateFlag(r.Context(), flag, actorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.broadcastSnapshot(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(entry)
}

func (h *handlers) getFlag(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	entry, found := h.client.GetFlag(r.Context(), key)
	if !found {
		writeError(w, r, flagerrors.New(flagerrors.NotFound, "flag "+key+" not found"))
		return
	}
	writeJSON(w, entry)
}

type updateFlagRequest struct {
	Value flagtypes.Value `json:"value"`
}

func (h *handlers) updateFlag(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	var body updateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, r, "malformed update body: %v", err)
		return
	}

	entry, found, err := h.client.UpdateFlag(r.Context(), key, body.Value, actorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, flagerrors.New(flagerrors.NotFound, "flag "+key+" not found"))
		return
	}
	h.broadcastSnapshot(r.Context())
	writeJSON(w, entry)
}

func (h *handlers) deleteFlag(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	found, err := h.client.DeleteFlag(r.Context(), key, actorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, flagerrors.New(flagerrors.NotFound, "flag "+key+" not found"))
		return
	}
	h.broadcastSnapshot(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) enableFlag(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	found, err := h.client.EnableFlag(r.Context(), key, actorID(r))
	h.writeStateChange(w, r, key, found, err)
}

func (h *handlers) disableFlag(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	found, err := h.client.DisableFlag(r.Context(), key, actorID(r))
	h.writeStateChange(w, r, key, found, err)
}

func (h *handlers) writeStateChange(w http.ResponseWriter, r *http.Request, key string, found bool, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, flagerrors.New(flagerrors.NotFound, "flag "+key+" not found"))
		return
	}
	entry, _ := h.client.GetFlag(r.Context(), key)
	h.broadcastSnapshot(r.Context())
	writeJSON(w, entry)
}

// broadcastSnapshot pushes the full current flag set to every connected
// SSE subscriber after a mutation, so downstream nodes running
// sse.Source stay converged without waiting on their own poll interval.
// A nil broadcaster (no downstream subscribers configured) or a
// snapshot error is silently skipped -- broadcasting is best-effort and
// must never fail the mutation that triggered it.
func (h *handlers) broadcastSnapshot(ctx context.Context) {
	if h.broadcaster == nil {
		return
	}
	entries, vec, err := h.client.Snapshot(ctx)
	if err != nil {
		h.logger.Warn("broadcast snapshot failed", "error", err)
		return
	}
	h.broadcaster.Publish(flagsync.Batch{Flags: entries, Version: vec})
}

func (h *handlers) evaluateFlag(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	var evalCtx flagtypes.EvaluationContext
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&evalCtx); err != nil {
			writeValidationError(w, r, "malformed evaluation context: %v", err)
			return
		}
	}
	if evalCtx.Timestamp.IsZero() {
		evalCtx.Timestamp = time.Now().UTC()
	}

	result := h.client.Evaluate(r.Context(), key, evalCtx)
	writeJSON(w, result)
}

func (h *handlers) triggerSync(w http.ResponseWriter, r *http.Request) {
	if h.poller != nil {
		merged, err := h.poller.Poll(r.Context())
		if err != nil {
			writeError(w, r, flagerrors.Wrap(flagerrors.NetworkError, "sync poll failed", err))
			return
		}
		writeJSON(w, map[string]interface{}{"merged": merged})
		return
	}

	var batch flagsync.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeValidationError(w, r, "malformed sync batch: %v", err)
		return
	}
	merged, err := h.client.MergeRemote(r.Context(), batch.Flags, actorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"merged": merged})
}

func (h *handlers) queryAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		writeError(w, r, flagerrors.New(flagerrors.StorageError, "audit log not configured"))
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		FlagKey: q.Get("flagKey"),
		ActorID: q.Get("actorId"),
	}
	if raw := q.Get("eventTypes"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filter.EventTypes = append(filter.EventTypes, audit.EventType(part))
		}
	}
	if raw := q.Get("startTime"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.StartTime = &t
		}
	}
	if raw := q.Get("endTime"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.EndTime = &t
		}
	}

	cursor := q.Get("cursor")
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	page := h.auditLog.Query(filter, cursor, limit)
	writeJSON(w, page)
}
