package ports

import "context"

// Fill is the result of a placed order.
type Fill struct {
	Price float64
}

// OrderExecutor places market orders and reports balances. Retrying is the
// caller's responsibility, not the executor's.
type OrderExecutor interface {
	// PlaceOrder submits a market order. side is "buy" or "sell".
	PlaceOrder(ctx context.Context, symbol, side string, quantity float64) (Fill, error)

	// FetchBalance returns per-asset totals. Used for periodic health
	// checks only, never for risk decisions.
	FetchBalance(ctx context.Context) (map[string]float64, error)
}
