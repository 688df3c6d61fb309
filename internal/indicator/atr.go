package indicator

import "math"

// ATR returns the rolling mean of the true range over period bars.
// True range = max(high-low, |high-prevClose|, |low-prevClose|); the first
// bar has no previous close and its true range is high-low. Indices before
// period-1 are NaN.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	out := make([]float64, n)
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = highs[i] - lows[i]
			continue
		}
		prev := closes[i-1]
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}
