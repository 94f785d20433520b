// Package sse implements the SSE transport for internal/sync.RemoteSource:
// Source consumes a remote node's text/event-stream endpoint; Broadcaster
// is the server side that serves that stream to downstream nodes,
// grounded on cmd/server/handlers/sse_handler.go and sse_subscriber.go.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
)

// Source implements sync.RemoteSource by GETting a text/event-stream
// URL and parsing the next "data: {...}" frame into a Batch. Each
// Fetch call opens a fresh connection and returns after the first
// frame (or ctx/timeout) -- the poller, not this type, owns the
// retry/interval policy.
type Source struct {
	URL    string
	Client *http.Client
}

// NewSource constructs a Source. A nil client defaults to
// &http.Client{Timeout: 30 * time.Second}.
func NewSource(url string, client *http.Client) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{URL: url, Client: client}
}

// Fetch satisfies sync.RemoteSource.
func (s *Source) Fetch(ctx context.Context) (flagsync.Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return flagsync.Batch{}, fmt.Errorf("sse: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.Client.Do(req)
	if err != nil {
		return flagsync.Batch{}, fmt.Errorf("sse: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return flagsync.Batch{}, fmt.Errorf("sse: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var batch flagsync.Batch
		if err := json.Unmarshal([]byte(payload), &batch); err != nil {
			return flagsync.Batch{}, fmt.Errorf("sse: decode frame: %w", err)
		}
		return batch, nil
	}
	if err := scanner.Err(); err != nil {
		return flagsync.Batch{}, fmt.Errorf("sse: read stream: %w", err)
	}
	return flagsync.Batch{}, fmt.Errorf("sse: stream closed before a data frame arrived")
}
