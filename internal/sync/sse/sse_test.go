package sse_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
	"github.com/vitaliisemenov/flagcore/internal/sync/sse"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcasterServesPublishedBatchToSource(t *testing.T) {
	b := sse.NewBroadcaster(silentLogger())
	server := httptest.NewServer(http.HandlerFunc(b.ServeHTTP))
	defer server.Close()

	want := flagsync.Batch{
		Flags:   []flagtypes.WithMeta{{Flag: flagtypes.Flag{Key: "feature-x"}}},
		Version: version.Vector{Version: 3, NodeID: "node-a", Checksum: "deadbeef"},
	}

	source := sse.NewSource(server.URL, &http.Client{Timeout: 5 * time.Second})

	resultCh := make(chan flagsync.Batch, 1)
	errCh := make(chan error, 1)
	go func() {
		got, err := source.Fetch(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- got
	}()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() > 0
	}, time.Second, time.Millisecond)

	b.Publish(want)

	select {
	case got := <-resultCh:
		assert.Equal(t, want.Version, got.Version)
		require.Len(t, got.Flags, 1)
		assert.Equal(t, "feature-x", got.Flags[0].Flag.Key)
	case err := <-errCh:
		t.Fatalf("fetch failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published batch")
	}
}

func TestSourceFetchFailsOnNonStreamingServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source := sse.NewSource(server.URL, nil)
	_, err := source.Fetch(context.Background())
	assert.Error(t, err)
}
