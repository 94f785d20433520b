package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
)

// Broadcaster serves GET /v1/sync/stream: it holds a registry of
// connected downstream nodes and fans out each Publish call to every
// one of them, the same subscribe/unsubscribe/broadcast shape as
// cmd/server/handlers.SSEHandler + SSESubscriber, generalized from a
// realtime event bus to flag-sync batches.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	logger      *slog.Logger
}

// NewBroadcaster constructs a Broadcaster. logger defaults to
// slog.Default().
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]*subscriber),
		logger:      logger.With("component", "sse_broadcaster"),
	}
}

// Publish fans batch out to every currently-connected subscriber.
func (b *Broadcaster) Publish(batch flagsync.Batch) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		sub.send(batch)
	}
}

// ServeHTTP handles GET /v1/sync/stream: it registers the requester as
// a subscriber, streams batches as "data: {...}\n\n" frames, and sends
// a keep-alive comment every 30s until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	sub := newSubscriber(uuid.New().String(), r.Context(), b.logger)
	b.register(sub)
	defer b.unregister(sub)

	b.logger.Info("sse client connected", "subscriber_id", sub.id, "remote_addr", r.RemoteAddr)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case batch, ok := <-sub.batch:
			if !ok {
				return
			}
			data, err := json.Marshal(batch)
			if err != nil {
				b.logger.Warn("failed to marshal sync batch", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (b *Broadcaster) register(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub.id] = sub
}

func (b *Broadcaster) unregister(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sub.id)
	sub.close()
}

// SubscriberCount reports the number of currently-connected downstream
// nodes, for metrics/diagnostics.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
