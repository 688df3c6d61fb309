package exchange

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/breakbot/internal/ports"
)

// Paper simulates order execution for paper mode: every order fills
// immediately at the current ticker price. Market data still comes from the
// real gateway.
type Paper struct {
	md      ports.MarketData
	balance map[string]float64
}

// NewPaper creates a simulated executor priced off md.
func NewPaper(md ports.MarketData, quoteAsset string, startEquity float64) *Paper {
	return &Paper{
		md:      md,
		balance: map[string]float64{quoteAsset: startEquity},
	}
}

// PlaceOrder implements ports.OrderExecutor by filling at the last traded
// price.
func (p *Paper) PlaceOrder(ctx context.Context, symbol, side string, quantity float64) (ports.Fill, error) {
	if quantity <= 0 {
		return ports.Fill{}, fmt.Errorf("exchange.Paper: order quantity %v", quantity)
	}
	t, err := p.md.FetchTicker(ctx, symbol)
	if err != nil {
		return ports.Fill{}, fmt.Errorf("exchange.Paper: price %s: %w", symbol, err)
	}
	price := t.Last
	if price <= 0 {
		price = t.Mid()
	}
	if price <= 0 {
		return ports.Fill{}, fmt.Errorf("exchange.Paper: no price for %s", symbol)
	}
	return ports.Fill{Price: price}, nil
}

// FetchBalance implements ports.OrderExecutor.
func (p *Paper) FetchBalance(_ context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(p.balance))
	for k, v := range p.balance {
		out[k] = v
	}
	return out, nil
}
