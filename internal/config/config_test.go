package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
admin: "0x000000000000000000000000000000000000ad01"
vault_account: "0x00000000000000000000000000000000000000aa"
assets:
  - symbol: USDC
    min_deposit: 1000000
    fee_rate_bps: 1000
    fee_recipient: "0x000000000000000000000000000000000000fee1"
    max_daily_increase_bps: 50
    allocations:
      aave-v3: 6000
      compound-v3: 4000
    sweep:
      destination: "0x00000000000000000000000000000000000b1d6e"
bridges:
  - address: "0x00000000000000000000000000000000000b1d6e"
    asset: USDC
    daily_limit: 1000000000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "data/vaults", cfg.Store.Dir)
	assert.Equal(t, "0 */15 * * * *", cfg.Schedule.RefreshCron)
	assert.EqualValues(t, 100, cfg.Allocator.ToleranceBps)

	usdc, ok := cfg.Asset("USDC")
	require.True(t, ok)
	assert.EqualValues(t, 6, usdc.Decimals)
	assert.EqualValues(t, 6000, usdc.Allocations["aave-v3"])
	assert.Zero(t, usdc.Sweep.Amount)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate(), "admin is still required")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad admin", func(c *Config) { c.Admin = "alice" }},
		{"no assets", func(c *Config) { c.Assets = nil }},
		{"duplicate asset", func(c *Config) { c.Assets = append(c.Assets, c.Assets[0]) }},
		{"fee too high", func(c *Config) { c.Assets[0].FeeRateBps = 2500 }},
		{"allocations short", func(c *Config) { c.Assets[0].Allocations["aave-v3"] = 5000 }},
		{"unknown store", func(c *Config) { c.Store.Driver = "s3" }},
		{"redis without addr", func(c *Config) { c.Store.Driver = "redis" }},
		{"bridge on unknown asset", func(c *Config) { c.Bridges[0].Asset = "DAI" }},
		{"chat id missing", func(c *Config) { c.Telegram.BotToken = "token" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sample))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
