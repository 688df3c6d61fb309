// Package backtest replays a bar series through the breakout strategy and
// risk sizing, producing the return figure the walk-forward optimizer
// maximizes. It shares the strategy and risk code paths with the live
// engine; only order execution is simulated (fills at the bar close).
package backtest

import (
	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/indicator"
	"github.com/alejandrodnm/breakbot/internal/risk"
	"github.com/alejandrodnm/breakbot/internal/strategy"
)

// Config controls one simulation run.
type Config struct {
	StartEquity  float64
	RiskFraction float64
	MaxDailyLoss float64 // kill-switch threshold; 0 disables
	PartialTP    strategy.PartialTP
}

// Result summarizes one simulation run.
type Result struct {
	ReturnPct      float64
	Trades         int
	EndEquity      float64
	MaxDrawdownPct float64
}

// Run simulates the strategy with the given parameters over bars.
func Run(bars []domain.Bar, params strategy.Params, cfg Config) Result {
	if cfg.StartEquity <= 0 {
		cfg.StartEquity = 10_000
	}
	if cfg.RiskFraction <= 0 {
		cfg.RiskFraction = 0.02
	}
	tp := cfg.PartialTP.Normalize()

	strat := strategy.New(params)
	rm := risk.NewManager(cfg.StartEquity, cfg.RiskFraction, cfg.MaxDailyLoss)
	series := indicator.Compute(bars, params.EntryLookback, params.ExitLookback, params.ATRPeriod, params.RSIPeriod)
	closes := domain.Closes(bars)

	var pos domain.Position
	pos.Reset()
	realized := 0.0
	trades := 0

	peak := cfg.StartEquity
	maxDD := 0.0
	mark := func(price float64) {
		eq := cfg.StartEquity + realized + pos.UnrealizedPnL(price)
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			if dd := (peak - eq) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	for i := 1; i < len(bars); i++ {
		price := closes[i]
		atr := series.ATR[i]

		if pos.Open() && indicator.Ready(atr) {
			r := params.StopATRMult * atr

			// Partial take-profit first, once per position.
			if tp.Enabled && !pos.TP1Done && pos.UnrealizedPnL(price) >= tp.TriggerR*r*pos.Quantity {
				closeQty := pos.Quantity * tp.Fraction
				realized += partialPnL(pos, price, closeQty)
				pos.Quantity -= closeQty
				pos.TP1Done = true
				trades++
			}

			// Stop-loss breach closes the remainder.
			if stopHit(pos, price, r) {
				realized += pos.UnrealizedPnL(price)
				pos.Reset()
				trades++
				mark(price)
				continue
			}
		}

		d := strat.Evaluate(series, closes, i, pos.State)
		switch {
		case pos.Open() && d.Exit:
			realized += pos.UnrealizedPnL(price)
			pos.Reset()
			trades++
		case !pos.Open() && d.Signal.Side != domain.SideFlat:
			qty := rm.PositionSize(d.Signal.ReferencePrice, d.Signal.StopPrice, risk.Limits{}, realized)
			if qty > 0 {
				pos.State = positionState(d.Signal.Side)
				pos.Quantity = qty
				pos.EntryPrice = price
				pos.TP1Done = false
				trades++
			}
		}

		mark(price)

		if cfg.MaxDailyLoss > 0 && rm.Breached(realized+pos.UnrealizedPnL(price)) {
			if pos.Open() {
				realized += pos.UnrealizedPnL(price)
				pos.Reset()
				trades++
			}
			break
		}
	}

	// Liquidate anything still open at the final close.
	if pos.Open() && len(closes) > 0 {
		last := closes[len(closes)-1]
		realized += pos.UnrealizedPnL(last)
		pos.Reset()
		trades++
	}

	end := cfg.StartEquity + realized
	return Result{
		ReturnPct:      (end - cfg.StartEquity) / cfg.StartEquity * 100,
		Trades:         trades,
		EndEquity:      end,
		MaxDrawdownPct: maxDD * 100,
	}
}

func partialPnL(pos domain.Position, price, qty float64) float64 {
	if pos.State == domain.PositionLong {
		return (price - pos.EntryPrice) * qty
	}
	return (pos.EntryPrice - price) * qty
}

// stopHit checks the protective stop. After the partial take-profit the
// remainder rides a breakeven stop at the entry price.
func stopHit(pos domain.Position, price, r float64) bool {
	switch pos.State {
	case domain.PositionLong:
		stop := pos.EntryPrice - r
		if pos.TP1Done {
			stop = pos.EntryPrice
		}
		return price <= stop
	case domain.PositionShort:
		stop := pos.EntryPrice + r
		if pos.TP1Done {
			stop = pos.EntryPrice
		}
		return price >= stop
	default:
		return false
	}
}

func positionState(side domain.Side) domain.PositionState {
	if side == domain.SideShort {
		return domain.PositionShort
	}
	return domain.PositionLong
}
