package domain

import "time"

// Bar is one OHLCV candle. Series are ordered oldest-first and immutable
// once fetched.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Ticker is the current top-of-book quote for a symbol.
type Ticker struct {
	Bid  float64
	Ask  float64
	Last float64
}

// Spread returns the relative bid/ask spread, or 1 when the book is empty
// so that the spread filter rejects it.
func (t Ticker) Spread() float64 {
	if t.Bid <= 0 || t.Ask <= 0 {
		return 1
	}
	return (t.Ask - t.Bid) / t.Ask
}

// Mid returns the mid price, falling back to Last when one side is missing.
func (t Ticker) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

// Highs extracts the high column from a bar series.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column from a bar series.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Closes extracts the close column from a bar series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
