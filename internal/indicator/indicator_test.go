package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/breakbot/internal/domain"
)

func TestDonchian_RollingExtrema(t *testing.T) {
	highs := []float64{5, 3, 8, 2, 9, 4, 7}
	lows := []float64{1, 2, 4, 1, 6, 3, 5}

	upper, lower := Donchian(highs, lows, 3)

	// Warmup: first lookback-1 indices undefined.
	assert.True(t, math.IsNaN(upper[0]))
	assert.True(t, math.IsNaN(upper[1]))
	assert.True(t, math.IsNaN(lower[1]))

	for i := 2; i < len(highs); i++ {
		wantHi := math.Max(highs[i], math.Max(highs[i-1], highs[i-2]))
		wantLo := math.Min(lows[i], math.Min(lows[i-1], lows[i-2]))
		assert.Equal(t, wantHi, upper[i], "upper[%d]", i)
		assert.Equal(t, wantLo, lower[i], "lower[%d]", i)
	}
}

func TestDonchian_LookbackOne(t *testing.T) {
	highs := []float64{5, 3, 8}
	lows := []float64{1, 2, 4}
	upper, lower := Donchian(highs, lows, 1)
	assert.Equal(t, highs, upper)
	assert.Equal(t, lows, lower)
}

func TestATR_WarmupAndStability(t *testing.T) {
	highs := []float64{11, 12, 13, 12, 14, 15, 13}
	lows := []float64{9, 10, 11, 10, 12, 13, 11}
	closes := []float64{10, 11, 12, 11, 13, 14, 12}

	atr := ATR(highs, lows, closes, 3)

	for i := 0; i < 2; i++ {
		assert.True(t, math.IsNaN(atr[i]), "atr[%d] should be warmup", i)
	}
	for i := 2; i < len(atr); i++ {
		assert.False(t, math.IsNaN(atr[i]), "atr[%d] should be defined", i)
	}

	// First TR has no previous close: 11-9=2. TR stays 2 through bar 2, so
	// the first ATR(3) value is 2.
	assert.InDelta(t, 2.0, atr[2], 1e-9)
}

func TestATR_TrueRangeUsesGaps(t *testing.T) {
	// Second bar gaps far above the first close: TR must use |high-prevClose|.
	highs := []float64{10, 20}
	lows := []float64{9, 19}
	closes := []float64{9.5, 19.5}

	atr := ATR(highs, lows, closes, 2)
	// TR = [1, max(1, 10.5, 9.5)] = [1, 10.5]; ATR(2) at i=1 = 5.75
	require.False(t, math.IsNaN(atr[1]))
	assert.InDelta(t, 5.75, atr[1], 1e-9)
}

func TestRSI_UpOnlyIs100(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	rsi := RSI(closes, 3)

	assert.True(t, math.IsNaN(rsi[2]), "before warmup")
	for i := 3; i < len(closes); i++ {
		assert.Equal(t, 100.0, rsi[i], "rsi[%d]", i)
	}
}

func TestRSI_DownOnlyIsZero(t *testing.T) {
	closes := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	rsi := RSI(closes, 3)
	for i := 3; i < len(closes); i++ {
		assert.InDelta(t, 0.0, rsi[i], 1e-9)
	}
}

func TestRSI_BoundedAndStable(t *testing.T) {
	closes := []float64{10, 11, 10.5, 11.2, 10.8, 11.5, 11.1, 12, 11.7, 12.3}
	rsi := RSI(closes, 4)
	for i := 4; i < len(closes); i++ {
		require.False(t, math.IsNaN(rsi[i]))
		assert.GreaterOrEqual(t, rsi[i], 0.0)
		assert.LessOrEqual(t, rsi[i], 100.0)
	}
}

func TestRSI_ShortSeriesAllNaN(t *testing.T) {
	rsi := RSI([]float64{1, 2, 3}, 14)
	for i, v := range rsi {
		assert.True(t, math.IsNaN(v), "rsi[%d]", i)
	}
}

func TestCompute_PureOnSameInput(t *testing.T) {
	bars := makeBars([]float64{10, 11, 12, 11, 13, 14, 12, 15, 16, 14})

	a := Compute(bars, 3, 2, 3, 3)
	b := Compute(bars, 3, 2, 3, 3)

	for i := range bars {
		sa, sb := a.At(i), b.At(i)
		if sa.Ready() {
			assert.Equal(t, sa, sb, "snapshot[%d]", i)
		} else {
			assert.False(t, sb.Ready(), "snapshot[%d]", i)
		}
	}
}

func TestWarmup(t *testing.T) {
	assert.Equal(t, 20, Warmup(20, 10, 14, 14))
	assert.Equal(t, 15, Warmup(10, 5, 14, 14))
	assert.Equal(t, 31, Warmup(10, 5, 14, 30))
}

func makeBars(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}
