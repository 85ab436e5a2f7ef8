package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "data", "test.db")+`
notifications:
  enabled: true
  bot_token: ${TEST_BOT_TOKEN}
  shop_chats:
    shop-1: 42
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Notifications.BotToken)
	assert.Equal(t, int64(42), cfg.Notifications.ShopChats["shop-1"])
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "configs/shops.yaml", cfg.Shops.ConfigPath)
	assert.DirExists(t, filepath.Join(dir, "data"))

	assert.True(t, cfg.SweeperEnabled())
	assert.Equal(t, time.Hour, cfg.SweepInterval())
	assert.Equal(t, 5*time.Minute, cfg.SweepLockTTL())
	assert.Equal(t, 30*time.Second, cfg.ShopsWatchInterval())
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.AuditLookback())

	rate, burst := cfg.NotificationRate()
	assert.Equal(t, 1.0, rate)
	assert.Equal(t, 5, burst)
}

func TestLoad_ExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "x.db")+`
sweeper:
  enabled: false
  interval_minutes: 15
  lock_ttl_seconds: 30
audit:
  interval_hours: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.SweeperEnabled())
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval())
	assert.Equal(t, 30*time.Second, cfg.SweepLockTTL())
	assert.Equal(t, 6*time.Hour, cfg.AuditInterval())
}

func TestLoad_PathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/shopbooking/config.yaml")
	assert.Equal(t, "/etc/shopbooking/config.yaml", Path())

	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, "configs/config.yaml", Path())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "bad.yaml", "database: [unterminated")
	_, err = Load(path)
	assert.Error(t, err)
}
