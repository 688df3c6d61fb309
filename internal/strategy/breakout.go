// Package strategy turns indicator snapshots into directional trade signals.
package strategy

import (
	"fmt"

	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/indicator"
)

// DefaultVolatilityFloor suppresses signals when ATR is below 0.15% of
// price (dead market).
const DefaultVolatilityFloor = 0.0015

// Params are the tunable strategy parameters. The walk-forward optimizer
// searches over a grid of these.
type Params struct {
	EntryLookback   int
	ExitLookback    int
	ATRPeriod       int
	RSIPeriod       int
	RSIFloor        float64 // longs need RSI within [RSIFloor, RSICeiling]
	RSICeiling      float64
	StopATRMult     float64
	VolatilityFloor float64
}

// ShortBand returns the complementary RSI band for shorts.
func (p Params) ShortBand() (lo, hi float64) {
	return 100 - p.RSICeiling, 100 - p.RSIFloor
}

// Warmup returns the bars of history required before Evaluate can decide.
// One extra bar on top of the indicator warmup because the regime filter
// reads the bar preceding the decision bar.
func (p Params) Warmup() int {
	return indicator.Warmup(p.EntryLookback, p.ExitLookback, p.ATRPeriod, p.RSIPeriod) + 1
}

// Decision is the advisory outcome of evaluating one bar. Exit demands that
// an open position be closed; Signal proposes an entry while flat.
type Decision struct {
	Signal domain.Signal
	Exit   bool
}

// Breakout is the Donchian breakout strategy with ATR stops and an RSI
// regime filter.
type Breakout struct {
	params Params
}

// New creates a Breakout strategy, filling zero parameters with defaults.
func New(params Params) *Breakout {
	if params.VolatilityFloor <= 0 {
		params.VolatilityFloor = DefaultVolatilityFloor
	}
	if params.RSICeiling <= 0 {
		params.RSICeiling = 100
	}
	return &Breakout{params: params}
}

// Params returns the effective parameter set.
func (b *Breakout) Params() Params { return b.params }

// Evaluate proposes a transition for the decision bar at index i, given the
// current position state. Bands and RSI are read from the bar strictly
// preceding the decision bar: the channel includes the current bar, so
// comparing against it would make a breakout undetectable, and filtering on
// the same bar's RSI would be lookahead. The live loop and the backtester
// both go through this path.
func (b *Breakout) Evaluate(series indicator.Series, closes []float64, i int, state domain.PositionState) Decision {
	hold := Decision{Signal: domain.Signal{Side: domain.SideFlat, Reason: "warmup"}}
	if i < 1 || i >= len(closes) {
		hold.Signal.Reason = "out of range"
		return hold
	}

	prev := series.At(i - 1)
	cur := series.At(i)
	if !prev.Ready() || !cur.Ready() {
		return hold
	}

	price := closes[i]
	if state != domain.PositionFlat {
		// Exit checks are never suppressed by the volatility floor.
		return b.exitDecision(prev, price, state)
	}

	if cur.ATR <= b.params.VolatilityFloor*price {
		hold.Signal.Reason = "low volatility"
		return hold
	}
	return b.entryDecision(prev, cur, price)
}

func (b *Breakout) entryDecision(prev, cur indicator.Snapshot, price float64) Decision {
	shortLo, shortHi := b.params.ShortBand()

	longOK := price > prev.DonchianUpperEntry &&
		prev.RSI >= b.params.RSIFloor && prev.RSI <= b.params.RSICeiling
	shortOK := price < prev.DonchianLowerEntry &&
		prev.RSI >= shortLo && prev.RSI <= shortHi

	switch {
	case longOK && shortOK:
		// Bands should be disjoint; if both fire, stand aside.
		return Decision{Signal: domain.Signal{Side: domain.SideFlat, Reason: "ambiguous breakout"}}
	case longOK:
		return Decision{Signal: domain.Signal{
			Side:           domain.SideLong,
			ReferencePrice: price,
			StopPrice:      price - b.params.StopATRMult*cur.ATR,
			Reason:         fmt.Sprintf("breakout above %.6f", prev.DonchianUpperEntry),
		}}
	case shortOK:
		return Decision{Signal: domain.Signal{
			Side:           domain.SideShort,
			ReferencePrice: price,
			StopPrice:      price + b.params.StopATRMult*cur.ATR,
			Reason:         fmt.Sprintf("breakout below %.6f", prev.DonchianLowerEntry),
		}}
	default:
		return Decision{Signal: domain.Signal{Side: domain.SideFlat, Reason: "no breakout"}}
	}
}

// exitDecision checks the Donchian exit band, then the regime flip, in that
// order. Stop-loss breach is position state and is evaluated by the engine
// before the strategy is consulted, which gives the spec priority
// stop-loss > Donchian exit > regime flip.
func (b *Breakout) exitDecision(prev indicator.Snapshot, price float64, state domain.PositionState) Decision {
	shortLo, shortHi := b.params.ShortBand()

	switch state {
	case domain.PositionLong:
		if price < prev.DonchianLowerExit {
			return Decision{Exit: true, Signal: domain.Signal{Side: domain.SideFlat, ReferencePrice: price, Reason: "donchian exit"}}
		}
		if prev.RSI < b.params.RSIFloor || prev.RSI > b.params.RSICeiling {
			return Decision{Exit: true, Signal: domain.Signal{Side: domain.SideFlat, ReferencePrice: price, Reason: "regime flip"}}
		}
	case domain.PositionShort:
		if price > prev.DonchianUpperExit {
			return Decision{Exit: true, Signal: domain.Signal{Side: domain.SideFlat, ReferencePrice: price, Reason: "donchian exit"}}
		}
		if prev.RSI < shortLo || prev.RSI > shortHi {
			return Decision{Exit: true, Signal: domain.Signal{Side: domain.SideFlat, ReferencePrice: price, Reason: "regime flip"}}
		}
	}
	return Decision{Signal: domain.Signal{Side: domain.SideFlat, Reason: "hold"}}
}
