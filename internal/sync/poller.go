package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config tunes the poller, generalizing
// internal/business/publishing.RefreshConfig's interval/backoff/warmup
// knobs to a generic remote-fetch loop.
type Config struct {
	Interval     time.Duration
	WarmupPeriod time.Duration
	FetchTimeout time.Duration
	MaxRetries   int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	ActorID      string
}

// DefaultConfig mirrors the teacher's DefaultRefreshConfig defaults,
// renamed to this package's fields.
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Minute,
		WarmupPeriod: 30 * time.Second,
		FetchTimeout: 30 * time.Second,
		MaxRetries:   5,
		BaseBackoff:  30 * time.Second,
		MaxBackoff:   5 * time.Minute,
		ActorID:      "sync-poller",
	}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sync: interval must be > 0")
	}
	if c.WarmupPeriod < 0 {
		return fmt.Errorf("sync: warmup_period must be >= 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("sync: fetch_timeout must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("sync: max_retries must be >= 0")
	}
	if c.BaseBackoff <= 0 {
		return fmt.Errorf("sync: base_backoff must be > 0")
	}
	if c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("sync: max_backoff must be >= base_backoff")
	}
	return nil
}

// Poller drives a RemoteSource on an interval and feeds accepted
// batches to a Merger, the same warmup-then-ticker lifecycle as
// internal/business/publishing.RefreshWorker's runBackgroundWorker,
// generalized from target discovery to flag sync. Fetch errors are
// reported on Errors() rather than propagated -- spec.md §7's "sync
// failures ... do not abort subsequent mutations."
type Poller struct {
	source RemoteSource
	merger Merger
	cfg    Config
	logger *slog.Logger

	errCh  chan error
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewPoller constructs a Poller. logger defaults to slog.Default().
func NewPoller(source RemoteSource, merger Merger, cfg Config, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source: source,
		merger: merger,
		cfg:    cfg,
		logger: logger.With("component", "sync_poller"),
		errCh:  make(chan error, 16),
	}
}

// Errors returns the channel fetch/merge failures are reported on.
// Callers should drain it; when the channel is full the new report is
// dropped (and logged) rather than blocking the poll loop.
func (p *Poller) Errors() <-chan error {
	return p.errCh
}

// Start begins the background poll loop. Calling Start twice is a
// no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run()
}

// Stop cancels the poll loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started || p.cancel == nil {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) run() {
	defer p.wg.Done()

	if p.cfg.WarmupPeriod > 0 {
		select {
		case <-time.After(p.cfg.WarmupPeriod):
		case <-p.ctx.Done():
			return
		}
	}

	p.poll()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-p.ctx.Done():
			return
		}
	}
}

// Poll runs one fetch-and-merge cycle immediately; exported so the
// HTTP transport's POST /v1/sync handler can trigger an out-of-band
// sync.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	batch, err := p.fetchWithRetry(ctx)
	if err != nil {
		return 0, err
	}
	accepted, err := p.merger.MergeRemote(ctx, batch.Flags, p.cfg.ActorID)
	if err != nil {
		return 0, err
	}
	return accepted, nil
}

func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.FetchTimeout)
	defer cancel()

	accepted, err := p.Poll(ctx)
	if err != nil {
		p.logger.Warn("sync poll failed", "error", err)
		p.report(err)
		return
	}
	p.logger.Debug("sync poll completed", "accepted", accepted)
}

// fetchWithRetry retries the remote fetch with exponential backoff,
// capped at MaxBackoff, the same schedule shape as the teacher's
// refreshWithRetry, minus its transient/permanent error classification
// (flagcore has no domain-specific notion of which fetch errors are
// worth retrying, so every error gets the same backoff treatment).
func (p *Poller) fetchWithRetry(ctx context.Context) (Batch, error) {
	backoff := p.cfg.BaseBackoff
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		batch, err := p.source.Fetch(ctx)
		if err == nil {
			return batch, nil
		}
		lastErr = err

		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Batch{}, ctx.Err()
		}
		backoff *= 2
		if backoff > p.cfg.MaxBackoff {
			backoff = p.cfg.MaxBackoff
		}
	}
	return Batch{}, fmt.Errorf("sync: fetch failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

func (p *Poller) report(err error) {
	select {
	case p.errCh <- err:
	default:
		p.logger.Warn("sync error channel full, dropping report", "error", err)
	}
}
