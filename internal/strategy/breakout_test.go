package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/indicator"
)

func testParams() Params {
	return Params{
		EntryLookback:   20,
		ExitLookback:    10,
		ATRPeriod:       14,
		RSIPeriod:       14,
		RSIFloor:        50,
		RSICeiling:      100,
		StopATRMult:     3,
		VolatilityFloor: 0.0015,
	}
}

// seriesOf builds an indicator.Series from explicit per-bar snapshots.
func seriesOf(snaps ...indicator.Snapshot) indicator.Series {
	n := len(snaps)
	s := indicator.Series{
		UpperEntry: make([]float64, n),
		LowerEntry: make([]float64, n),
		UpperExit:  make([]float64, n),
		LowerExit:  make([]float64, n),
		ATR:        make([]float64, n),
		RSI:        make([]float64, n),
	}
	for i, sn := range snaps {
		s.UpperEntry[i] = sn.DonchianUpperEntry
		s.LowerEntry[i] = sn.DonchianLowerEntry
		s.UpperExit[i] = sn.DonchianUpperExit
		s.LowerExit[i] = sn.DonchianLowerExit
		s.ATR[i] = sn.ATR
		s.RSI[i] = sn.RSI
	}
	return s
}

func readySnap(upper, lower, atr, rsi float64) indicator.Snapshot {
	return indicator.Snapshot{
		DonchianUpperEntry: upper,
		DonchianLowerEntry: lower,
		DonchianUpperExit:  upper - 1,
		DonchianLowerExit:  lower + 1,
		ATR:                atr,
		RSI:                rsi,
	}
}

func TestEvaluate_LongBreakout(t *testing.T) {
	b := New(testParams())
	series := seriesOf(
		readySnap(105, 95, 2, 60), // prior bar: band + regime source
		readySnap(106, 95, 2, 60),
	)
	closes := []float64{104, 106} // decision bar closes above prior upper 105

	d := b.Evaluate(series, closes, 1, domain.PositionFlat)

	assert.Equal(t, domain.SideLong, d.Signal.Side)
	assert.Equal(t, 106.0, d.Signal.ReferencePrice)
	assert.InDelta(t, 106-3*2, d.Signal.StopPrice, 1e-9)
	assert.False(t, d.Exit)
}

func TestEvaluate_ShortBreakout(t *testing.T) {
	b := New(testParams())
	series := seriesOf(
		readySnap(105, 95, 2, 30), // short band is [0,50] with floor 50
		readySnap(105, 94, 2, 30),
	)
	closes := []float64{96, 94}

	d := b.Evaluate(series, closes, 1, domain.PositionFlat)

	assert.Equal(t, domain.SideShort, d.Signal.Side)
	assert.InDelta(t, 94+3*2, d.Signal.StopPrice, 1e-9)
}

func TestEvaluate_RegimeLookaheadGuard(t *testing.T) {
	b := New(testParams())
	// Only the decision bar's RSI would pass the long filter; the prior
	// bar's does not. The signal must be rejected.
	series := seriesOf(
		readySnap(105, 95, 2, 45), // prior RSI below floor
		readySnap(106, 95, 2, 72), // decision bar RSI would pass
	)
	closes := []float64{104, 106}

	d := b.Evaluate(series, closes, 1, domain.PositionFlat)

	assert.Equal(t, domain.SideFlat, d.Signal.Side)
	assert.Equal(t, "no breakout", d.Signal.Reason)
}

func TestEvaluate_VolatilityFloorSuppressesEntry(t *testing.T) {
	b := New(testParams())
	// ATR 0.1 on a 106 price is below 0.15% of price.
	series := seriesOf(
		readySnap(105, 95, 0.1, 60),
		readySnap(106, 95, 0.1, 60),
	)
	closes := []float64{104, 106}

	d := b.Evaluate(series, closes, 1, domain.PositionFlat)

	assert.Equal(t, domain.SideFlat, d.Signal.Side)
	assert.Equal(t, "low volatility", d.Signal.Reason)
}

func TestEvaluate_VolatilityFloorDoesNotSuppressExit(t *testing.T) {
	b := New(testParams())
	series := seriesOf(
		readySnap(105, 95, 0.1, 60),
		readySnap(105, 95, 0.1, 60),
	)
	closes := []float64{104, 95} // below prior exit band (96)

	d := b.Evaluate(series, closes, 1, domain.PositionLong)

	assert.True(t, d.Exit)
	assert.Equal(t, "donchian exit", d.Signal.Reason)
}

func TestEvaluate_ExitPriority_DonchianBeforeRegime(t *testing.T) {
	b := New(testParams())
	// Both the exit band cross and the regime flip hold on the same bar.
	series := seriesOf(
		readySnap(105, 95, 2, 40), // RSI below floor → regime flip
		readySnap(105, 95, 2, 40),
	)
	closes := []float64{104, 95}

	d := b.Evaluate(series, closes, 1, domain.PositionLong)

	assert.True(t, d.Exit)
	assert.Equal(t, "donchian exit", d.Signal.Reason)
}

func TestEvaluate_RegimeFlipExitsLong(t *testing.T) {
	b := New(testParams())
	series := seriesOf(
		readySnap(105, 95, 2, 40),
		readySnap(105, 95, 2, 40),
	)
	closes := []float64{104, 100} // inside exit band, regime flipped

	d := b.Evaluate(series, closes, 1, domain.PositionLong)

	assert.True(t, d.Exit)
	assert.Equal(t, "regime flip", d.Signal.Reason)
}

func TestEvaluate_HoldInsideBands(t *testing.T) {
	b := New(testParams())
	series := seriesOf(
		readySnap(105, 95, 2, 60),
		readySnap(105, 95, 2, 60),
	)
	closes := []float64{104, 100}

	d := b.Evaluate(series, closes, 1, domain.PositionLong)

	assert.False(t, d.Exit)
	assert.Equal(t, "hold", d.Signal.Reason)
}

func TestEvaluate_WarmupReturnsFlat(t *testing.T) {
	b := New(testParams())
	nan := math.NaN()
	series := seriesOf(
		indicator.Snapshot{DonchianUpperEntry: nan, DonchianLowerEntry: nan, DonchianUpperExit: nan, DonchianLowerExit: nan, ATR: nan, RSI: nan},
		readySnap(105, 95, 2, 60),
	)
	closes := []float64{104, 106}

	d := b.Evaluate(series, closes, 1, domain.PositionFlat)

	assert.Equal(t, domain.SideFlat, d.Signal.Side)
	assert.Equal(t, "warmup", d.Signal.Reason)
}

func TestEntryDecision_AmbiguousResolvesFlat(t *testing.T) {
	b := New(testParams())
	// Corrupted band (upper below lower) makes both directions fire; the
	// guard must stand aside rather than open two directions.
	prev := readySnap(100, 100, 2, 50)
	prev.DonchianUpperEntry = 99
	prev.DonchianLowerEntry = 101
	cur := readySnap(100, 100, 2, 50)

	d := b.entryDecision(prev, cur, 100)

	assert.Equal(t, domain.SideFlat, d.Signal.Side)
	assert.Equal(t, "ambiguous breakout", d.Signal.Reason)
}
