package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/breakbot/internal/domain"
)

// LedgerStats are the aggregate performance figures over recorded trades.
type LedgerStats struct {
	TradesClosed   int
	WinRatePct     float64
	AvgWin         float64
	AvgLoss        float64
	Expectancy     float64
	ProfitFactor   float64 // +Inf when there are wins and no losses
	PnLSum         float64
	MaxDrawdownPct float64
}

// TradeLedger persists trade records and the per-cycle equity history.
type TradeLedger interface {
	// SaveTrade records one realized state transition.
	SaveTrade(ctx context.Context, rec domain.TradeRecord) error

	// SaveEquityPoint appends one equity observation.
	SaveEquityPoint(ctx context.Context, at time.Time, equity float64) error

	// RecentTrades returns the latest n records, oldest-first.
	RecentTrades(ctx context.Context, n int) ([]domain.TradeRecord, error)

	// EquityHistory returns the recorded equity curve, oldest-first.
	EquityHistory(ctx context.Context) ([]float64, error)

	// Stats computes aggregate performance over all recorded trades.
	Stats(ctx context.Context) (LedgerStats, error)

	// Close releases the underlying store.
	Close() error
}
