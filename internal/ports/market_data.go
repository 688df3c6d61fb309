package ports

import (
	"context"

	"github.com/alejandrodnm/breakbot/internal/domain"
)

// MarketData fetches bar series and tickers from the exchange gateway.
type MarketData interface {
	// FetchBars returns up to limit OHLCV bars for the symbol and
	// timeframe, ordered oldest-first.
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error)

	// FetchTicker returns the current top-of-book quote.
	FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error)
}
