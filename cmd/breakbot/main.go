package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/breakbot/config"
	"github.com/alejandrodnm/breakbot/internal/adapters/exchange"
	"github.com/alejandrodnm/breakbot/internal/adapters/ledger"
	"github.com/alejandrodnm/breakbot/internal/adapters/notify"
	"github.com/alejandrodnm/breakbot/internal/engine"
	"github.com/alejandrodnm/breakbot/internal/ports"
	"github.com/alejandrodnm/breakbot/internal/risk"
	"github.com/alejandrodnm/breakbot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "paper", "run mode: paper|live|backtest|walkforward")
	once := flag.Bool("once", false, "run one cycle and exit (paper/live)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full per-symbol tables (default: compact 1-line)")
	bars := flag.Int("bars", 1000, "history bars for backtest/walkforward modes")
	windows := flag.Int("windows", 5, "walk-forward window count")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("breakbot starting",
		"config", *configPath,
		"mode", *mode,
		"symbols", cfg.Trading.Symbols,
		"timeframe", cfg.Trading.Timeframe,
		"interval", cfg.CycleInterval(),
	)

	client := exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	notifier := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "backtest":
		runBacktest(ctx, cfg, client, notifier, *bars)
		return
	case "walkforward":
		runWalkForward(ctx, cfg, client, notifier, *bars, *windows)
		return
	case "paper", "live":
	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}

	var exec ports.OrderExecutor = client
	if *mode == "paper" {
		exec = exchange.NewPaper(client, cfg.Exchange.QuoteAsset, cfg.Risk.StartEquity)
	} else if cfg.Exchange.APIKey == "" {
		slog.Error("live mode requires EXCHANGE_API_KEY")
		os.Exit(1)
	}

	store, err := ledger.NewSQLite(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open trade ledger", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	eng := engine.New(engineConfig(cfg, *mode), client, exec, store, notifier)

	runLoop(ctx, eng, cfg.CycleInterval(), *once)
	// ctx is cancelled after a signal; the summary queries need a live one.
	printExitSummary(context.Background(), store, notifier)
	slog.Info("breakbot stopped cleanly")
}

func engineConfig(cfg *config.Config, mode string) engine.Config {
	return engine.Config{
		Mode:             mode,
		Symbols:          cfg.Trading.Symbols,
		Timeframe:        cfg.Trading.Timeframe,
		BarLimit:         cfg.Trading.BarLimit,
		StartEquity:      cfg.Risk.StartEquity,
		RiskFraction:     cfg.Risk.RiskFraction,
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		Strategy:         strategyParams(cfg),
		PartialTP:        partialTP(cfg),
		Limits:           risk.Limits{LotStep: cfg.Risk.LotStep, MinQty: cfg.Risk.MinQty, MaxQty: cfg.Risk.MaxQty},
		BreakerThreshold: cfg.Risk.BreakerThreshold,
		MaxSpread:        cfg.Trading.MaxSpread,
		MinVolume:        cfg.Trading.MinVolume,
	}
}

func strategyParams(cfg *config.Config) strategy.Params {
	return strategy.Params{
		EntryLookback:   cfg.Strategy.EntryLookback,
		ExitLookback:    cfg.Strategy.ExitLookback,
		ATRPeriod:       cfg.Strategy.ATRPeriod,
		RSIPeriod:       cfg.Strategy.RSIPeriod,
		RSIFloor:        cfg.Strategy.RSIFloor,
		RSICeiling:      cfg.Strategy.RSICeiling,
		StopATRMult:     cfg.Strategy.StopATRMult,
		VolatilityFloor: cfg.Strategy.VolatilityFloor,
	}
}

func partialTP(cfg *config.Config) strategy.PartialTP {
	return strategy.PartialTP{
		Enabled:  cfg.Risk.PartialTP.Enabled,
		TriggerR: cfg.Risk.PartialTP.TriggerR,
		Fraction: cfg.Risk.PartialTP.Fraction,
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
