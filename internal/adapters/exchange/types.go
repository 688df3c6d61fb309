package exchange

import (
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/breakbot/internal/domain"
)

// Wire payloads for the gateway's JSON API. The OHLCV endpoint returns the
// ccxt-style array form: [timestampMs, open, high, low, close, volume].

type tickerPayload struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}

type orderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
}

type orderResponse struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
}

type balancePayload struct {
	Total map[string]float64 `json:"total"`
}

// normalizeBars converts raw OHLCV rows into Bars ordered oldest-first.
// Gateways occasionally return newest-first pages; the engine's contract is
// oldest-first, so ordering is enforced here, not downstream.
func normalizeBars(raw [][]float64) ([]domain.Bar, error) {
	bars := make([]domain.Bar, 0, len(raw))
	for i, row := range raw {
		if len(row) < 6 {
			return nil, fmt.Errorf("exchange: ohlcv row %d has %d fields, want 6", i, len(row))
		}
		bars = append(bars, domain.Bar{
			Timestamp: time.UnixMilli(int64(row[0])).UTC(),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
			Volume:    row[5],
		})
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}
