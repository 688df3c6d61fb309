package indicator

import "math"

// RSI returns the Wilder-smoothed relative strength index: average gain and
// average loss are exponentially weighted with factor 1/period, then
// RSI = 100 - 100/(1+avgGain/avgLoss). When avgLoss is zero the series has
// been up-only over the window and RSI is 100 by definition. Indices before
// the first period price changes are NaN.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || n <= period {
		return out
	}

	// Seed with the simple average of the first period changes.
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = avgGain*(1-alpha) + g*alpha
		avgLoss = avgLoss*(1-alpha) + l*alpha
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
