package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
trading:
  symbols: ["BTC/USDT", "ETH/USDT"]
  interval_seconds: 30
strategy:
  entry_lookback: 25
risk:
  risk_fraction: 0.02
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 30*time.Second, cfg.CycleInterval())
	assert.Equal(t, 25, cfg.Strategy.EntryLookback)
	assert.Equal(t, 0.02, cfg.Risk.RiskFraction)

	// Unset values take the Donchian 20/10 baseline.
	assert.Equal(t, 10, cfg.Strategy.ExitLookback)
	assert.Equal(t, 14, cfg.Strategy.ATRPeriod)
	assert.Equal(t, 3.0, cfg.Strategy.StopATRMult)
	assert.Equal(t, 50.0, cfg.Strategy.RSIFloor)
	assert.Equal(t, 100.0, cfg.Strategy.RSICeiling)
	assert.Equal(t, 10_000.0, cfg.Risk.StartEquity)
	assert.Equal(t, 0.05, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, "1h", cfg.Trading.Timeframe)
	assert.Equal(t, "breakbot.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
exchange:
  base_url: "https://file.example"
trading:
  symbols: ["BTC/USDT"]
log:
  level: warn
`)

	t.Setenv("EXCHANGE_BASE_URL", "https://env.example")
	t.Setenv("EXCHANGE_API_KEY", "key-from-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example", cfg.Exchange.BaseURL)
	assert.Equal(t, "key-from-env", cfg.Exchange.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Trading.Symbols = []string{"BTC/USDT"}
		setDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults pass", mutate: func(*Config) {}},
		{name: "no symbols", mutate: func(c *Config) { c.Trading.Symbols = nil }, wantErr: true},
		{name: "risk fraction too high", mutate: func(c *Config) { c.Risk.RiskFraction = 1 }, wantErr: true},
		{name: "inverted rsi band", mutate: func(c *Config) { c.Strategy.RSIFloor = 80; c.Strategy.RSICeiling = 60 }, wantErr: true},
		{name: "exit lookback of one", mutate: func(c *Config) { c.Strategy.ExitLookback = 1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_PartialTPDefaults(t *testing.T) {
	path := writeConfig(t, `
trading:
  symbols: ["BTC/USDT"]
risk:
  partial_tp:
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Risk.PartialTP.Enabled)
	assert.Equal(t, 1.0, cfg.Risk.PartialTP.TriggerR)
	assert.Equal(t, 0.5, cfg.Risk.PartialTP.Fraction)
}
