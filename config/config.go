package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration.
type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Trading  TradingConfig  `yaml:"trading"`
	Strategy StrategyConfig `yaml:"strategy"`
	Risk     RiskConfig     `yaml:"risk"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ExchangeConfig points at the market-data/execution gateway. The API key and
// secret come from the environment, never from the YAML file.
type ExchangeConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"-"`
	APISecret  string `yaml:"-"`
	QuoteAsset string `yaml:"quote_asset"`
}

// TradingConfig controls the engine loop.
type TradingConfig struct {
	Symbols         []string `yaml:"symbols"`
	Timeframe       string   `yaml:"timeframe"`
	IntervalSeconds int      `yaml:"interval_seconds"`
	BarLimit        int      `yaml:"bar_limit"`

	// MaxSpread and MinVolume gate new entries; 0 disables either filter.
	MaxSpread float64 `yaml:"max_spread"`
	MinVolume float64 `yaml:"min_volume"`
}

// StrategyConfig holds the breakout parameters.
type StrategyConfig struct {
	EntryLookback   int     `yaml:"entry_lookback"`
	ExitLookback    int     `yaml:"exit_lookback"`
	ATRPeriod       int     `yaml:"atr_period"`
	RSIPeriod       int     `yaml:"rsi_period"`
	RSIFloor        float64 `yaml:"rsi_floor"`
	RSICeiling      float64 `yaml:"rsi_ceiling"`
	StopATRMult     float64 `yaml:"stop_atr_mult"`
	VolatilityFloor float64 `yaml:"volatility_floor"`
}

// RiskConfig holds the sizing and loss-limit knobs.
type RiskConfig struct {
	StartEquity      float64 `yaml:"start_equity"`
	RiskFraction     float64 `yaml:"risk_fraction"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss"`
	BreakerThreshold float64 `yaml:"breaker_threshold"`
	LotStep          float64 `yaml:"lot_step"`
	MinQty           float64 `yaml:"min_qty"`
	MaxQty           float64 `yaml:"max_qty"`

	PartialTP PartialTPConfig `yaml:"partial_tp"`
}

// PartialTPConfig controls the one-shot partial take-profit.
type PartialTPConfig struct {
	Enabled  bool    `yaml:"enabled"`
	TriggerR float64 `yaml:"trigger_r"`
	Fraction float64 `yaml:"fraction"`
}

// StorageConfig controls where the trade ledger lives.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and overlays .env / environment values. Env values
// win over YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env when present; a missing file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// CycleInterval returns the pause between engine cycles.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Trading.IntervalSeconds) * time.Second
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("validate: no symbols configured")
	}
	if c.Risk.RiskFraction <= 0 || c.Risk.RiskFraction >= 1 {
		return fmt.Errorf("validate: risk_fraction %v out of (0, 1)", c.Risk.RiskFraction)
	}
	if c.Risk.MaxDailyLoss < 0 || c.Risk.MaxDailyLoss >= 1 {
		return fmt.Errorf("validate: max_daily_loss %v out of [0, 1)", c.Risk.MaxDailyLoss)
	}
	if c.Strategy.EntryLookback <= 1 || c.Strategy.ExitLookback <= 1 {
		return fmt.Errorf("validate: lookbacks must be > 1 (entry %d, exit %d)",
			c.Strategy.EntryLookback, c.Strategy.ExitLookback)
	}
	if c.Strategy.RSIFloor < 0 || c.Strategy.RSIFloor > c.Strategy.RSICeiling || c.Strategy.RSICeiling > 100 {
		return fmt.Errorf("validate: rsi band [%v, %v] invalid",
			c.Strategy.RSIFloor, c.Strategy.RSICeiling)
	}
	return nil
}

// applyEnvOverrides overlays environment variables where present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills anything the file left unset. The strategy defaults are
// the Donchian 20/10, ATR(14)x3, RSI(14) baseline.
func setDefaults(cfg *Config) {
	if cfg.Exchange.QuoteAsset == "" {
		cfg.Exchange.QuoteAsset = "USDT"
	}
	if cfg.Trading.Timeframe == "" {
		cfg.Trading.Timeframe = "1h"
	}
	if cfg.Trading.IntervalSeconds <= 0 {
		cfg.Trading.IntervalSeconds = 60
	}
	if cfg.Trading.BarLimit <= 0 {
		cfg.Trading.BarLimit = 200
	}
	if cfg.Strategy.EntryLookback <= 0 {
		cfg.Strategy.EntryLookback = 20
	}
	if cfg.Strategy.ExitLookback <= 0 {
		cfg.Strategy.ExitLookback = 10
	}
	if cfg.Strategy.ATRPeriod <= 0 {
		cfg.Strategy.ATRPeriod = 14
	}
	if cfg.Strategy.RSIPeriod <= 0 {
		cfg.Strategy.RSIPeriod = 14
	}
	if cfg.Strategy.RSIFloor <= 0 {
		cfg.Strategy.RSIFloor = 50
	}
	if cfg.Strategy.RSICeiling <= 0 {
		cfg.Strategy.RSICeiling = 100
	}
	if cfg.Strategy.StopATRMult <= 0 {
		cfg.Strategy.StopATRMult = 3.0
	}
	if cfg.Risk.StartEquity <= 0 {
		cfg.Risk.StartEquity = 10_000
	}
	if cfg.Risk.RiskFraction <= 0 {
		cfg.Risk.RiskFraction = 0.01
	}
	if cfg.Risk.MaxDailyLoss <= 0 {
		cfg.Risk.MaxDailyLoss = 0.05
	}
	if cfg.Risk.BreakerThreshold <= 0 {
		cfg.Risk.BreakerThreshold = 0.05
	}
	if cfg.Risk.PartialTP.Enabled {
		if cfg.Risk.PartialTP.TriggerR <= 0 {
			cfg.Risk.PartialTP.TriggerR = 1
		}
		if cfg.Risk.PartialTP.Fraction <= 0 {
			cfg.Risk.PartialTP.Fraction = 0.5
		}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "breakbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
