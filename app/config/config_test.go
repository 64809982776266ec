package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Sync.IntervalSeconds)
	assert.False(t, cfg.Sync.Enabled)
	assert.False(t, cfg.Database.Enabled())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, dir, cfg.DataDir())
	assert.Equal(t, filepath.Join(dir, "restopos.db"), cfg.LocalPath())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://pos@db/pos")
	t.Setenv("WS_PORT", "9090")
	t.Setenv("SYNC_ENABLED", "true")
	t.Setenv("SYNC_INTERVAL_SECONDS", "5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOCAL_DB_PATH", "/var/lib/pos/pos.db")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "postgres://pos@db/pos", cfg.Database.URL)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.True(t, cfg.Sync.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Sync.Interval())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "/var/lib/pos/pos.db", cfg.LocalPath())
	assert.False(t, cfg.IsDevelopment())
}

func TestSaveLoad_EncryptsPasswords(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	cfg.Database.Host = "10.0.0.5"
	cfg.Database.Password = "s3cret"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Password = "redis-pass"
	cfg.Business.Name = "Baan Khao"
	require.NoError(t, Save(cfg))
	assert.Equal(t, "s3cret", cfg.Database.Password, "saving leaves the caller's copy in plain text")

	info, err := os.Stat(filepath.Join(dir, configFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(filepath.Join(dir, configFileName))
	require.NoError(t, err)
	var onDisk AppConfig
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.NotEmpty(t, onDisk.Database.Password)
	assert.NotEqual(t, "s3cret", onDisk.Database.Password)
	assert.NotContains(t, string(raw), "redis-pass")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", loaded.Database.Password)
	assert.Equal(t, "redis-pass", loaded.Redis.Password)
	assert.Equal(t, "Baan Khao", loaded.Business.Name)
	assert.True(t, loaded.Database.Enabled())
}

func TestLoad_PlainTextPasswordKept(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"database": {"host": "db", "password": "typed-by-hand"}, "server": {"port": 8181}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), data, 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "typed-by-hand", cfg.Database.Password)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Sync.IntervalSeconds, "fields missing from the file keep their defaults")
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("{"), 0600))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		ok     bool
	}{
		{"defaults", func(*AppConfig) {}, true},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }, false},
		{"sync without database", func(c *AppConfig) { c.Sync.Enabled = true }, false},
		{"sync with zero interval", func(c *AppConfig) {
			c.Sync.Enabled = true
			c.Database.Host = "db"
			c.Sync.IntervalSeconds = 0
		}, false},
		{"sync with database", func(c *AppConfig) {
			c.Sync.Enabled = true
			c.Database.URL = "postgres://db"
		}, true},
		{"kafka without topic", func(c *AppConfig) {
			c.Kafka.Brokers = []string{"k1:9092"}
			c.Kafka.Topic = ""
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestGetDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "pos")
	t.Setenv("POS_DATA_DIR", dir)

	got, err := GetDataDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
