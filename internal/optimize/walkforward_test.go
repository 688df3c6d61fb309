package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/breakbot/internal/backtest"
	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/strategy"
)

func syntheticBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		// Sawtooth trend: enough structure for the grid search to rank
		// parameter sets differently.
		if i%7 < 5 {
			price += 2
		} else {
			price -= 1.5
		}
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price,
			Volume: 100,
		}
	}
	return bars
}

func testConfig() Config {
	return Config{
		Windows: 5,
		Workers: 2,
		Base: strategy.Params{
			ATRPeriod:  5,
			RSIPeriod:  5,
			RSICeiling: 100,
		},
		Grid: Grid{
			EntryLookbacks: []int{3, 5},
			ExitLookbacks:  []int{2, 3},
			StopMults:      []float64{2.0, 3.0},
			RSIFloors:      []float64{45, 50},
		},
		Backtest: backtest.Config{StartEquity: 10_000, RiskFraction: 0.02},
	}
}

func TestSplitWindow_EqualWindowsWithRemainderInLastTest(t *testing.T) {
	bars := syntheticBars(100)

	for i := 0; i < 5; i++ {
		train, test := splitWindow(bars, i, 5)
		assert.Len(t, train, 13, "window %d train", i)
		assert.Len(t, test, 7, "window %d test", i)
	}
}

func TestSplitWindow_RemainderBars(t *testing.T) {
	// 103 bars over 5 windows: windows 0-3 are 20 bars, the last window is
	// 23 bars with the extra bars in its test slice.
	bars := syntheticBars(103)

	train, test := splitWindow(bars, 4, 5)
	assert.Len(t, train, 15) // floor(23*2/3)
	assert.Len(t, test, 8)

	train, test = splitWindow(bars, 0, 5)
	assert.Len(t, train, 13)
	assert.Len(t, test, 7)
}

func TestSplitWindow_SlicesAreDisjointAndOrdered(t *testing.T) {
	bars := syntheticBars(100)

	prevEnd := time.Time{}
	for i := 0; i < 5; i++ {
		train, test := splitWindow(bars, i, 5)
		require.NotEmpty(t, train)
		require.NotEmpty(t, test)

		assert.True(t, train[0].Timestamp.After(prevEnd), "window %d starts after previous", i)
		assert.True(t, test[0].Timestamp.After(train[len(train)-1].Timestamp), "window %d test after train", i)
		prevEnd = test[len(test)-1].Timestamp
	}
}

func TestWalkForward_ReportShape(t *testing.T) {
	bars := syntheticBars(400)

	report, err := WalkForward(context.Background(), bars, testConfig())
	require.NoError(t, err)

	require.Len(t, report.Windows, 5)
	total := 0.0
	for i, w := range report.Windows {
		assert.Equal(t, i, w.Index)
		assert.Greater(t, w.Best.EntryLookback, 0)
		total += w.OOSReturnPct
	}
	assert.InDelta(t, total/5, report.MeanOOSReturnPct, 1e-9)
}

func TestWalkForward_DeterministicAcrossWorkerCounts(t *testing.T) {
	bars := syntheticBars(400)

	cfg1 := testConfig()
	cfg1.Workers = 1
	cfg4 := testConfig()
	cfg4.Workers = 4

	a, err := WalkForward(context.Background(), bars, cfg1)
	require.NoError(t, err)
	b, err := WalkForward(context.Background(), bars, cfg4)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestWalkForward_TooFewBars(t *testing.T) {
	_, err := WalkForward(context.Background(), syntheticBars(10), testConfig())
	assert.Error(t, err)
}

func TestWalkForward_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WalkForward(ctx, syntheticBars(400), testConfig())
	assert.Error(t, err)
}

func TestOptimize_PicksBestTrainReturn(t *testing.T) {
	bars := syntheticBars(200)
	cfg := testConfig()

	best, res, err := Optimize(context.Background(), bars, cfg)
	require.NoError(t, err)

	// The winner's return must be >= every grid cell's return.
	for _, entry := range cfg.Grid.EntryLookbacks {
		for _, exit := range cfg.Grid.ExitLookbacks {
			for _, mult := range cfg.Grid.StopMults {
				for _, floor := range cfg.Grid.RSIFloors {
					p := cfg.Base
					p.EntryLookback = entry
					p.ExitLookback = exit
					p.StopATRMult = mult
					p.RSIFloor = floor
					cell := backtest.Run(bars, p, cfg.Backtest)
					assert.GreaterOrEqual(t, res.ReturnPct, cell.ReturnPct)
				}
			}
		}
	}
	assert.Contains(t, cfg.Grid.EntryLookbacks, best.EntryLookback)
}
