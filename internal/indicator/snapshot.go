package indicator

import "github.com/alejandrodnm/breakbot/internal/domain"

// Snapshot bundles the indicator values at one bar index.
type Snapshot struct {
	DonchianUpperEntry float64
	DonchianLowerEntry float64
	DonchianUpperExit  float64
	DonchianLowerExit  float64
	ATR                float64
	RSI                float64
}

// Ready reports whether every value in the snapshot is past its warmup.
func (s Snapshot) Ready() bool {
	return Ready(s.DonchianUpperEntry) && Ready(s.DonchianLowerEntry) &&
		Ready(s.DonchianUpperExit) && Ready(s.DonchianLowerExit) &&
		Ready(s.ATR) && Ready(s.RSI)
}

// Series holds the aligned indicator columns for a full bar series.
type Series struct {
	UpperEntry []float64
	LowerEntry []float64
	UpperExit  []float64
	LowerExit  []float64
	ATR        []float64
	RSI        []float64
}

// At returns the snapshot for bar index i.
func (s Series) At(i int) Snapshot {
	return Snapshot{
		DonchianUpperEntry: s.UpperEntry[i],
		DonchianLowerEntry: s.LowerEntry[i],
		DonchianUpperExit:  s.UpperExit[i],
		DonchianLowerExit:  s.LowerExit[i],
		ATR:                s.ATR[i],
		RSI:                s.RSI[i],
	}
}

// Compute derives the full indicator series for the given bars.
func Compute(bars []domain.Bar, entryLookback, exitLookback, atrPeriod, rsiPeriod int) Series {
	highs := domain.Highs(bars)
	lows := domain.Lows(bars)
	closes := domain.Closes(bars)

	var s Series
	s.UpperEntry, s.LowerEntry = Donchian(highs, lows, entryLookback)
	s.UpperExit, s.LowerExit = Donchian(highs, lows, exitLookback)
	s.ATR = ATR(highs, lows, closes, atrPeriod)
	s.RSI = RSI(closes, rsiPeriod)
	return s
}

// Warmup returns the number of bars needed before every indicator in a
// series computed with these parameters is ready.
func Warmup(entryLookback, exitLookback, atrPeriod, rsiPeriod int) int {
	w := entryLookback
	if exitLookback > w {
		w = exitLookback
	}
	if atrPeriod > w {
		w = atrPeriod
	}
	if rsiPeriod+1 > w {
		w = rsiPeriod + 1
	}
	return w
}
