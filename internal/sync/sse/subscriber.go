package sse

import (
	"context"
	"log/slog"
	"sync"

	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
)

// subscriber is one connected downstream node, generalizing
// cmd/server/handlers.SSESubscriber from a realtime.Event channel to a
// sync.Batch channel.
type subscriber struct {
	id     string
	ctx    context.Context
	batch  chan flagsync.Batch
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newSubscriber(id string, ctx context.Context, logger *slog.Logger) *subscriber {
	return &subscriber{
		id:     id,
		ctx:    ctx,
		batch:  make(chan flagsync.Batch, 4),
		logger: logger.With("subscriber_id", id),
	}
}

// send delivers a batch, dropping it (with a warning) if the
// subscriber's buffer is already full rather than blocking the
// broadcaster -- a slow downstream node must not stall the others.
func (s *subscriber) send(batch flagsync.Batch) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.batch <- batch:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("sse subscriber buffer full, dropping batch")
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.batch)
}
