package config_test

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/flagcore/internal/config"
	"github.com/vitaliisemenov/flagcore/internal/store"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100000, cfg.Audit.MaxRecords)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	resetViper(t)

	os.Setenv("FLAGCORE_SERVER_PORT", "9999")
	os.Setenv("FLAGCORE_STORE_BACKEND", "sqlite")
	os.Setenv("FLAGCORE_STORE_SQLITE_PATH", "/tmp/flagcore.db")
	os.Setenv("FLAGCORE_STORE_NODE_ID", "node-a")
	defer func() {
		os.Unsetenv("FLAGCORE_SERVER_PORT")
		os.Unsetenv("FLAGCORE_STORE_BACKEND")
		os.Unsetenv("FLAGCORE_STORE_SQLITE_PATH")
		os.Unsetenv("FLAGCORE_STORE_NODE_ID")
	}()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, store.Backend("sqlite"), cfg.Store.ToStoreConfig().Backend)
}

func TestValidateRejectsInvalidCacheTTLOrdering(t *testing.T) {
	resetViper(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Cache.MinTTL = cfg.Cache.DefaultTTL + 1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSQLiteBackendWithoutPath(t *testing.T) {
	resetViper(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	resetViper(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Store.Backend = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestLoadAppliesSyncDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.Sync.Transport)
	assert.Equal(t, "sync-poller", cfg.Sync.ActorID)
	pollerCfg := cfg.Sync.ToPollerConfig()
	assert.Equal(t, cfg.Sync.Interval, pollerCfg.Interval)
	assert.Equal(t, cfg.Sync.ActorID, pollerCfg.ActorID)
}

func TestValidateRejectsSyncTransportWithoutRemoteURL(t *testing.T) {
	resetViper(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Sync.Transport = "sse"
	cfg.Sync.RemoteURL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownSyncTransport(t *testing.T) {
	resetViper(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Sync.Transport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	resetViper(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestToCacheAuditStoreConfigConversions(t *testing.T) {
	resetViper(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	cacheCfg := cfg.Cache.ToCacheConfig()
	assert.Equal(t, cfg.Cache.MaxSize, cacheCfg.MaxSize)

	auditCfg := cfg.Audit.ToAuditConfig()
	assert.Equal(t, cfg.Audit.RetentionDays*24, int(auditCfg.Retention.Hours()))

	storeCfg := cfg.Store.ToStoreConfig()
	assert.Equal(t, store.Backend(cfg.Store.Backend), storeCfg.Backend)

	logCfg := cfg.Log.ToLoggerConfig()
	assert.Equal(t, cfg.Log.Level, logCfg.Level)
	assert.Equal(t, cfg.Log.Format, logCfg.Format)
}
