// Package exchange is the REST market-data and order-execution gateway.
//
// Transient failures are retried with exponential backoff up to a bounded
// attempt count; exhaustion surfaces as an error scoped to the call, which
// the engine treats as a per-symbol per-cycle failure.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/ports"
)

const (
	// Public market-data endpoints tolerate far more traffic than the
	// private order endpoints; both limits sit well under typical
	// exchange ceilings.
	marketRatePerSec = 10
	orderRatePerSec  = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client talks to the exchange REST gateway with rate limiting and retries.
// It implements ports.MarketData and ports.OrderExecutor.
type Client struct {
	http          *http.Client
	base          string
	apiKey        string
	apiSecret     string
	marketLimiter *rate.Limiter
	orderLimiter  *rate.Limiter
}

// NewClient creates a Client for the given base URL. Key and secret may be
// empty for public (market-data only) use.
func NewClient(base, apiKey, apiSecret string) *Client {
	return &Client{
		http:          &http.Client{Timeout: 10 * time.Second},
		base:          base,
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		marketLimiter: rate.NewLimiter(marketRatePerSec, 5),
		orderLimiter:  rate.NewLimiter(orderRatePerSec, 1),
	}
}

// FetchBars implements ports.MarketData.
func (c *Client) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	var raw [][]float64
	if err := c.get(ctx, c.marketLimiter, "/ohlcv?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("exchange.FetchBars %s: %w", symbol, err)
	}
	return normalizeBars(raw)
}

// FetchTicker implements ports.MarketData.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var t tickerPayload
	if err := c.get(ctx, c.marketLimiter, "/ticker?"+q.Encode(), &t); err != nil {
		return domain.Ticker{}, fmt.Errorf("exchange.FetchTicker %s: %w", symbol, err)
	}
	return domain.Ticker{Bid: t.Bid, Ask: t.Ask, Last: t.Last}, nil
}

// PlaceOrder implements ports.OrderExecutor. The call itself is retried on
// transport errors like every other request; the engine owns the
// higher-level abandon-on-exhaustion policy.
func (c *Client) PlaceOrder(ctx context.Context, symbol, side string, quantity float64) (ports.Fill, error) {
	req := orderRequest{Symbol: symbol, Side: side, Type: "market", Quantity: quantity}

	var resp orderResponse
	if err := c.post(ctx, c.orderLimiter, "/order", req, &resp); err != nil {
		return ports.Fill{}, fmt.Errorf("exchange.PlaceOrder %s %s: %w", side, symbol, err)
	}
	if resp.Price <= 0 {
		return ports.Fill{}, fmt.Errorf("exchange.PlaceOrder %s %s: gateway returned fill price %v", side, symbol, resp.Price)
	}
	return ports.Fill{Price: resp.Price}, nil
}

// FetchBalance implements ports.OrderExecutor.
func (c *Client) FetchBalance(ctx context.Context) (map[string]float64, error) {
	var b balancePayload
	if err := c.get(ctx, c.marketLimiter, "/balance", &b); err != nil {
		return nil, fmt.Errorf("exchange.FetchBalance: %w", err)
	}
	return b.Total, nil
}

// get does a GET with rate limiting and retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, path string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return c.http.Do(req)
	}, out)
}

// post does a JSON POST with rate limiting and retries.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, path string, body, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.setHeaders(req)
		return c.http.Do(req)
	}, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("X-API-Secret", c.apiSecret)
	}
}

// doWithRetry runs fn with exponential backoff. 4xx responses other than
// 429 are not retried: the request itself is wrong.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by exchange", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
