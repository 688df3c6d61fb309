package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/strategy"
)

func smallParams() strategy.Params {
	return strategy.Params{
		EntryLookback: 3,
		ExitLookback:  2,
		ATRPeriod:     3,
		RSIPeriod:     3,
		RSIFloor:      50,
		RSICeiling:    100,
		StopATRMult:   3,
	}
}

func barsFromCloses(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c + 1, Low: c - 1, Close: c,
			Volume: 100,
		}
	}
	return bars
}

func trendingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 2*float64(i)
	}
	return closes
}

func TestRun_TrendingSeriesProfits(t *testing.T) {
	bars := barsFromCloses(trendingCloses(30))
	res := Run(bars, smallParams(), Config{StartEquity: 1000, RiskFraction: 0.01})

	require.Greater(t, res.Trades, 0)
	assert.Greater(t, res.ReturnPct, 0.0)
	assert.InDelta(t, 1000*(1+res.ReturnPct/100), res.EndEquity, 1e-6)
}

func TestRun_Deterministic(t *testing.T) {
	bars := barsFromCloses(trendingCloses(40))
	cfg := Config{StartEquity: 1000, RiskFraction: 0.01}

	a := Run(bars, smallParams(), cfg)
	b := Run(bars, smallParams(), cfg)

	assert.Equal(t, a, b)
}

func TestRun_QuietMarketNoTrades(t *testing.T) {
	// Constant price: no breakout and ATR below the volatility floor is
	// irrelevant because the band is never exceeded.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	res := Run(barsFromCloses(closes), smallParams(), Config{StartEquity: 1000, RiskFraction: 0.01})

	assert.Equal(t, 0, res.Trades)
	assert.Equal(t, 0.0, res.ReturnPct)
}

func TestRun_PartialTPAddsOneTrade(t *testing.T) {
	bars := barsFromCloses(trendingCloses(40))
	cfg := Config{StartEquity: 1000, RiskFraction: 0.01}

	without := Run(bars, smallParams(), cfg)

	cfg.PartialTP = strategy.DefaultPartialTP()
	with := Run(bars, smallParams(), cfg)

	// The monotonic rally crosses +1R exactly once per position; TP1 must
	// fire at most once on top of the entry/exit pair.
	assert.Equal(t, without.Trades+1, with.Trades)
}

func TestRun_KillSwitchStopsRun(t *testing.T) {
	// Rally into a long, crash through the loss limit, then keep falling.
	// With the kill-switch armed the run must liquidate and halt; without
	// it the strategy re-enters short on the way down.
	closes := trendingCloses(15)
	closes = append(closes, 40)
	for i := 0; i < 14; i++ {
		closes = append(closes, closes[len(closes)-1]-2)
	}
	bars := barsFromCloses(closes)

	killed := Run(bars, smallParams(), Config{StartEquity: 1000, RiskFraction: 0.05, MaxDailyLoss: 0.02})
	free := Run(bars, smallParams(), Config{StartEquity: 1000, RiskFraction: 0.05})

	require.Greater(t, killed.Trades, 0)
	assert.Less(t, killed.ReturnPct, 0.0)
	// Halted at the breach: no trades after the forced liquidation.
	assert.Less(t, killed.Trades, free.Trades)
}
