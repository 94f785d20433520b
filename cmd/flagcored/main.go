// Command flagcored runs the flagcore evaluation server: it loads
// configuration, wires the store/cache/audit/client stack, optionally
// starts a background sync poller against a remote source, and serves
// the HTTP façade until an interrupt or terminate signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/audit"
	"github.com/vitaliisemenov/flagcore/internal/cache"
	"github.com/vitaliisemenov/flagcore/internal/client"
	"github.com/vitaliisemenov/flagcore/internal/config"
	"github.com/vitaliisemenov/flagcore/internal/store"
	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
	"github.com/vitaliisemenov/flagcore/internal/sync/push"
	"github.com/vitaliisemenov/flagcore/internal/sync/sse"
	flaghttp "github.com/vitaliisemenov/flagcore/internal/transport/http"
	"github.com/vitaliisemenov/flagcore/internal/version"
	"github.com/vitaliisemenov/flagcore/pkg/logger"
)

const (
	serviceName    = "flagcore"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (yaml/json/toml)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flagcored: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.ToLoggerConfig())
	log.Info("starting flagcore", "service", serviceName, "version", serviceVersion)

	nodeID := cfg.Store.NodeID
	if nodeID == "" {
		nodeID = "flagcore-node"
	}
	now := version.Clock(func() int64 { return time.Now().UnixMilli() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(ctx, cfg.Store.ToStoreConfig(), log, now)
	if err != nil {
		log.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}

	cacheMgr, err := cache.NewManager(cfg.Cache.ToCacheConfig(), log)
	if err != nil {
		log.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheMgr.Close()

	auditLog := audit.New(cfg.Audit.ToAuditConfig(), time.Now)

	c := client.New(nodeID, st, cacheMgr, auditLog, log, now)

	poller, broadcaster := buildSyncTransports(cfg, c, log)
	if poller != nil {
		poller.Start(ctx)
		defer poller.Stop()
		go logPollErrors(ctx, poller, log)
	}

	routerCfg := flaghttp.DefaultConfig(c, auditLog, log)
	routerCfg.Poller = poller
	routerCfg.Broadcaster = broadcaster
	router := flaghttp.NewRouter(routerCfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}

// buildSyncTransports constructs the outbound sse.Broadcaster (always
// available, so GET /v1/sync/stream can serve downstream nodes
// regardless of whether this node also polls a remote) and an optional
// Poller from cfg.Sync. Transport "none" (the default) leaves the
// Poller nil: the server accepts pushes/merges via POST /v1/sync but
// does not itself fetch from a remote.
func buildSyncTransports(cfg *config.Config, c *client.Client, log *slog.Logger) (*flagsync.Poller, *sse.Broadcaster) {
	broadcaster := sse.NewBroadcaster(log)

	var source flagsync.RemoteSource
	switch cfg.Sync.Transport {
	case "sse":
		source = sse.NewSource(cfg.Sync.RemoteURL, nil)
	case "push":
		source = push.NewSource(cfg.Sync.RemoteURL, nil)
	default:
		return nil, broadcaster
	}

	poller := flagsync.NewPoller(source, c, cfg.Sync.ToPollerConfig(), log)
	return poller, broadcaster
}

func logPollErrors(ctx context.Context, poller *flagsync.Poller, log *slog.Logger) {
	for {
		select {
		case err, ok := <-poller.Errors():
			if !ok {
				return
			}
			log.Warn("sync poll error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}
