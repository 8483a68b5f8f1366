package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log:
  level: debug
  format: json
http:
  listen: 127.0.0.1:9090
auth:
  jwt_secret: 0123456789abcdef0123
engine:
  bootstrap_admin: root
  fee_rate: 40
clock:
  genesis: 2026-03-01T00:00:00Z
  block_interval: 1m
metrics:
  enabled: true
balances:
  alice: 1000000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func loadFrom(t *testing.T, path string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.Set("config_file", path)
	return loadConfig(v)
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := loadFrom(t, writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Listen)
	assert.Equal(t, "/drip", cfg.HTTP.BasePath)
	assert.Equal(t, "root", cfg.Engine.BootstrapAdmin)
	assert.Equal(t, uint64(40), cfg.Engine.FeeRate)
	assert.Equal(t, "drip.escrow", cfg.Engine.EscrowAccount)
	assert.Equal(t, time.Minute, cfg.Clock.BlockInterval)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, uint64(1_000_000), cfg.Balances["alice"])
	assert.Equal(t, "memory", cfg.Store.Driver)

	genesis, err := cfg.Clock.GenesisTime()
	require.NoError(t, err)
	assert.Equal(t, 2026, genesis.Year())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DRIP_HTTP_LISTEN", "0.0.0.0:7070")
	t.Setenv("DRIP_ENGINE_FEE_RATE", "10")
	t.Setenv("DRIP_STORE_DRIVER", "badger")
	t.Setenv("DRIP_STORE_DIR", "/var/lib/drip")

	cfg, err := loadFrom(t, writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7070", cfg.HTTP.Listen)
	assert.Equal(t, uint64(10), cfg.Engine.FeeRate)
	assert.Equal(t, "badger", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/drip", cfg.Store.Dir)
}

func TestLoadConfigEnvOnly(t *testing.T) {
	t.Setenv("DRIP_AUTH_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DRIP_ENGINE_BOOTSTRAP_ADMIN", "root")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.Engine.BootstrapAdmin)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Listen)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"DRIP_AUTH_JWT_SECRET": ""}, "JWTSecret"},
		{"short secret", map[string]string{"DRIP_AUTH_JWT_SECRET": "short"}, "JWTSecret"},
		{"badger without dir", map[string]string{"DRIP_STORE_DRIVER": "badger"}, "Dir"},
		{"unknown driver", map[string]string{"DRIP_STORE_DRIVER": "mysql"}, "Driver"},
		{"sqlite without dsn", map[string]string{"DRIP_STORE_DRIVER": "sqlite"}, "DSN"},
		{"postgres without dsn", map[string]string{"DRIP_STORE_DRIVER": "postgres"}, "DSN"},
		{"fee too high", map[string]string{"DRIP_ENGINE_FEE_RATE": "20000"}, "FeeRate"},
		{"same accounts", map[string]string{"DRIP_ENGINE_TREASURY_ACCOUNT": "drip.escrow"}, "EscrowAccount"},
		{"bad genesis", map[string]string{"DRIP_CLOCK_GENESIS": "yesterday"}, "Genesis"},
		{"bad level", map[string]string{"DRIP_LOG_LEVEL": "loud"}, "Level"},
		{"kafka without topic", map[string]string{"DRIP_KAFKA_BROKERS": "localhost:9092"}, "Topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DRIP_AUTH_JWT_SECRET", "0123456789abcdef0123")
			t.Setenv("DRIP_ENGINE_BOOTSTRAP_ADMIN", "root")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadFrom(t, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
