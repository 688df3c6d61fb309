// Package indicator computes technical indicators over full bar series.
//
// Every function is pure: the same input series always yields the same
// output series, so the live loop and the backtester share one code path.
// Values before an indicator's warmup period are NaN; callers check
// readiness with Ready.
package indicator

import "math"

// Donchian returns the rolling max of highs and rolling min of lows over the
// trailing lookback bars, inclusive of the current bar. Indices before
// lookback-1 are NaN.
func Donchian(highs, lows []float64, lookback int) (upper, lower []float64) {
	n := len(highs)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < n; i++ {
		if lookback <= 0 || i < lookback-1 {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}
		hi := math.Inf(-1)
		lo := math.Inf(1)
		for j := i - lookback + 1; j <= i; j++ {
			hi = math.Max(hi, highs[j])
			lo = math.Min(lo, lows[j])
		}
		upper[i] = hi
		lower[i] = lo
	}
	return upper, lower
}

// Ready reports whether v is a usable indicator value.
func Ready(v float64) bool {
	return !math.IsNaN(v)
}
