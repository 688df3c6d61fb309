// Package optimize implements grid-search parameter optimization and
// walk-forward analysis with parallel out-of-sample evaluation.
package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/alejandrodnm/breakbot/internal/backtest"
	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/strategy"
)

// Grid is the parameter search space. Every combination is evaluated.
type Grid struct {
	EntryLookbacks []int
	ExitLookbacks  []int
	StopMults      []float64
	RSIFloors      []float64
}

// DefaultGrid is the search space the system has always used.
func DefaultGrid() Grid {
	return Grid{
		EntryLookbacks: []int{10, 15, 20, 25, 30},
		ExitLookbacks:  []int{5, 10, 15},
		StopMults:      []float64{2.0, 2.5, 3.0, 3.5},
		RSIFloors:      []float64{45, 50, 55},
	}
}

// Config controls one walk-forward run.
type Config struct {
	Windows  int // default 5
	Workers  int // default NumCPU
	Base     strategy.Params
	Grid     Grid
	Backtest backtest.Config
}

// WindowResult is the outcome of one train/optimize/test window.
type WindowResult struct {
	Index          int
	TrainBars      int
	TestBars       int
	Best           strategy.Params
	TrainReturnPct float64
	OOSReturnPct   float64
	OOSTrades      int
}

// Report aggregates the per-window out-of-sample returns. The mean is
// unweighted: every window counts the same regardless of test length.
type Report struct {
	Windows          []WindowResult
	MeanOOSReturnPct float64
}

// WalkForward splits bars into cfg.Windows equal windows, optimizes on each
// window's training slice and evaluates out-of-sample on its test slice.
// Windows share no state and run on a worker pool; cancelling ctx discards
// windows that have not completed.
func WalkForward(ctx context.Context, bars []domain.Bar, cfg Config) (Report, error) {
	windows := cfg.Windows
	if windows <= 0 {
		windows = 5
	}
	if len(bars) < windows*3 {
		return Report{}, fmt.Errorf("optimize.WalkForward: %d bars is too short for %d windows", len(bars), windows)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > windows {
		workers = windows
	}

	workCh := make(chan int, windows)
	resultCh := make(chan WindowResult, windows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				res, ok := evaluateWindow(ctx, bars, idx, windows, cfg)
				if !ok {
					continue
				}
				resultCh <- res
			}
		}()
	}

	for i := 0; i < windows; i++ {
		workCh <- i
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	report := Report{Windows: make([]WindowResult, 0, windows)}
	for res := range resultCh {
		report.Windows = append(report.Windows, res)
	}
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("optimize.WalkForward: cancelled: %w", err)
	}

	sort.Slice(report.Windows, func(i, j int) bool {
		return report.Windows[i].Index < report.Windows[j].Index
	})
	total := 0.0
	for _, w := range report.Windows {
		total += w.OOSReturnPct
	}
	if len(report.Windows) > 0 {
		report.MeanOOSReturnPct = total / float64(len(report.Windows))
	}
	return report, nil
}

// evaluateWindow runs train/optimize/test for window idx. Returns false when
// the context was cancelled mid-search.
func evaluateWindow(ctx context.Context, bars []domain.Bar, idx, windows int, cfg Config) (WindowResult, bool) {
	train, test := splitWindow(bars, idx, windows)

	best, trainRes, ok := gridSearch(ctx, train, cfg)
	if !ok {
		return WindowResult{}, false
	}

	oos := backtest.Run(test, best, cfg.Backtest)
	slog.Debug("walk-forward window complete",
		"window", idx,
		"train_bars", len(train),
		"test_bars", len(test),
		"train_return_pct", trainRes.ReturnPct,
		"oos_return_pct", oos.ReturnPct,
	)

	return WindowResult{
		Index:          idx,
		TrainBars:      len(train),
		TestBars:       len(test),
		Best:           best,
		TrainReturnPct: trainRes.ReturnPct,
		OOSReturnPct:   oos.ReturnPct,
		OOSTrades:      oos.Trades,
	}, true
}

// splitWindow returns the train and test slices for window idx of the given
// count. Windows are equal-length; the last window's test slice absorbs the
// remainder bars. Train is the first 2/3 (integer floor) of the window.
func splitWindow(bars []domain.Bar, idx, windows int) (train, test []domain.Bar) {
	size := len(bars) / windows
	start := idx * size
	end := start + size
	if idx == windows-1 {
		end = len(bars)
	}
	trainEnd := start + (end-start)*2/3
	return bars[start:trainEnd], bars[trainEnd:end]
}

// gridSearch evaluates every parameter combination on the training slice
// and returns the one maximizing total return. Iteration order is fixed, so
// ties resolve deterministically to the first-seen combination.
func gridSearch(ctx context.Context, train []domain.Bar, cfg Config) (strategy.Params, backtest.Result, bool) {
	grid := cfg.Grid
	if len(grid.EntryLookbacks) == 0 {
		grid = DefaultGrid()
	}

	var (
		best    strategy.Params
		bestRes backtest.Result
		found   bool
	)
	for _, entry := range grid.EntryLookbacks {
		for _, exit := range grid.ExitLookbacks {
			for _, mult := range grid.StopMults {
				for _, floor := range grid.RSIFloors {
					select {
					case <-ctx.Done():
						return strategy.Params{}, backtest.Result{}, false
					default:
					}

					params := cfg.Base
					params.EntryLookback = entry
					params.ExitLookback = exit
					params.StopATRMult = mult
					params.RSIFloor = floor

					res := backtest.Run(train, params, cfg.Backtest)
					if !found || res.ReturnPct > bestRes.ReturnPct {
						best, bestRes, found = params, res, true
					}
				}
			}
		}
	}
	return best, bestRes, found
}

// Optimize grid-searches the full series without a walk-forward split.
// Used by the plain backtest mode.
func Optimize(ctx context.Context, bars []domain.Bar, cfg Config) (strategy.Params, backtest.Result, error) {
	best, res, ok := gridSearch(ctx, bars, cfg)
	if !ok {
		return strategy.Params{}, backtest.Result{}, fmt.Errorf("optimize.Optimize: cancelled: %w", ctx.Err())
	}
	return best, res, nil
}
