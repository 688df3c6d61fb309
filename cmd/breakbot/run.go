package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/breakbot/config"
	"github.com/alejandrodnm/breakbot/internal/adapters/exchange"
	"github.com/alejandrodnm/breakbot/internal/adapters/ledger"
	"github.com/alejandrodnm/breakbot/internal/adapters/notify"
	"github.com/alejandrodnm/breakbot/internal/backtest"
	"github.com/alejandrodnm/breakbot/internal/engine"
	"github.com/alejandrodnm/breakbot/internal/optimize"
)

const stopFile = "STOP"

// runLoop drives the engine until the context is cancelled, a STOP file
// appears, or the kill-switch fires.
func runLoop(ctx context.Context, eng *engine.Engine, interval time.Duration, once bool) {
	runCycle(ctx, eng)
	if once || eng.Killed() {
		return
	}

	slog.Info("trading loop started, press Ctrl+C or create STOP file to exit",
		"interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("trading loop stopped (signal)")
			return
		case <-ticker.C:
			if _, err := os.Stat(stopFile); err == nil {
				slog.Info("STOP file detected, shutting down")
				os.Remove(stopFile)
				return
			}
			runCycle(ctx, eng)
			if eng.Killed() {
				slog.Warn("kill-switch shutdown", "event", "kill_switch",
					"realized_pnl", eng.RealizedPnL())
				return
			}
		}
	}
}

func runCycle(ctx context.Context, eng *engine.Engine) {
	if _, err := eng.RunCycle(ctx); err != nil {
		slog.Error("cycle failed", "err", err)
	}
}

// runBacktest grid-searches the full history per symbol and prints the best
// parameter set with its in-sample result.
func runBacktest(ctx context.Context, cfg *config.Config, client *exchange.Client, notifier *notify.Console, barCount int) {
	slog.Info("=== BACKTEST MODE: grid search over full history ===", "bars", barCount)

	optCfg := optimize.Config{
		Base: strategyParams(cfg),
		Grid: optimize.DefaultGrid(),
		Backtest: backtest.Config{
			StartEquity:  cfg.Risk.StartEquity,
			RiskFraction: cfg.Risk.RiskFraction,
			PartialTP:    partialTP(cfg),
		},
	}

	for _, sym := range cfg.Trading.Symbols {
		bars, err := client.FetchBars(ctx, sym, cfg.Trading.Timeframe, barCount)
		if err != nil {
			slog.Error("failed to fetch history", "symbol", sym, "err", err)
			continue
		}

		best, res, err := optimize.Optimize(ctx, bars, optCfg)
		if err != nil {
			slog.Error("optimization failed", "symbol", sym, "err", err)
			return
		}

		slog.Info("best parameters",
			"symbol", sym,
			"entry_lookback", best.EntryLookback,
			"exit_lookback", best.ExitLookback,
			"stop_atr_mult", best.StopATRMult,
			"rsi_floor", best.RSIFloor,
		)
		notifier.PrintBacktest(sym, len(bars), res)
	}
}

// runWalkForward runs the windowed optimization per symbol and prints the
// out-of-sample report.
func runWalkForward(ctx context.Context, cfg *config.Config, client *exchange.Client, notifier *notify.Console, barCount, windows int) {
	slog.Info("=== WALK-FORWARD MODE ===", "bars", barCount, "windows", windows)

	wfCfg := optimize.Config{
		Windows: windows,
		Base:    strategyParams(cfg),
		Grid:    optimize.DefaultGrid(),
		Backtest: backtest.Config{
			StartEquity:  cfg.Risk.StartEquity,
			RiskFraction: cfg.Risk.RiskFraction,
			PartialTP:    partialTP(cfg),
		},
	}

	for _, sym := range cfg.Trading.Symbols {
		bars, err := client.FetchBars(ctx, sym, cfg.Trading.Timeframe, barCount)
		if err != nil {
			slog.Error("failed to fetch history", "symbol", sym, "err", err)
			continue
		}

		report, err := optimize.WalkForward(ctx, bars, wfCfg)
		if err != nil {
			slog.Error("walk-forward failed", "symbol", sym, "err", err)
			return
		}
		notifier.PrintWalkForward(sym, report)
	}
}

// printExitSummary prints the ledger's aggregate stats and recent trades on
// shutdown.
func printExitSummary(ctx context.Context, store *ledger.SQLite, notifier *notify.Console) {
	stats, err := store.Stats(ctx)
	if err != nil {
		slog.Warn("could not generate exit summary", "err", err)
		return
	}
	notifier.PrintStats(stats)

	trades, err := store.RecentTrades(ctx, 20)
	if err != nil {
		slog.Warn("could not load recent trades", "err", err)
		return
	}
	notifier.PrintTrades(trades)
}
