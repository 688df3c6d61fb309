// Package risk converts signals into position sizes against a risk budget
// and enforces the daily loss limit.
package risk

import "math"

// Limits are the exchange-imposed quantity constraints for an instrument.
// Zero values mean "no constraint".
type Limits struct {
	LotStep float64
	MinQty  float64
	MaxQty  float64
}

// Manager sizes positions against the session equity baseline. All methods
// are deterministic functions of their inputs; the only state is the
// constructor-supplied baseline.
type Manager struct {
	equity               float64
	startEquity          float64
	riskFraction         float64
	maxDailyLossFraction float64
}

// Throttle halves the risk fraction once drawdown reaches this level.
const throttleDrawdown = 0.05

// NewManager creates a risk manager with equity fixed as the session
// baseline.
func NewManager(equity, riskFraction, maxDailyLossFraction float64) *Manager {
	return &Manager{
		equity:               equity,
		startEquity:          equity,
		riskFraction:         riskFraction,
		maxDailyLossFraction: maxDailyLossFraction,
	}
}

// StartEquity returns the session baseline.
func (m *Manager) StartEquity() float64 { return m.startEquity }

// drawdown is the fractional decline from the session start, given realized
// PnL since start. Positive PnL yields a negative drawdown.
func (m *Manager) drawdown(realizedPnL float64) float64 {
	return (m.startEquity - (m.startEquity + realizedPnL)) / m.startEquity
}

// EffectiveRiskFraction returns the configured risk fraction, halved while
// drawdown is at or past 5%.
func (m *Manager) EffectiveRiskFraction(realizedPnL float64) float64 {
	if m.drawdown(realizedPnL) >= throttleDrawdown {
		return m.riskFraction * 0.5
	}
	return m.riskFraction
}

// PositionSize returns the quantity to trade so that a move from entry to
// stop loses equity * effective risk fraction. Returns 0 when the stop
// distance is not positive. The result is floor-rounded to limits.LotStep,
// clamped to [MinQty, MaxQty], and never negative.
func (m *Manager) PositionSize(entry, stop float64, limits Limits, realizedPnL float64) float64 {
	distance := math.Abs(entry - stop)
	if distance <= 0 {
		return 0
	}

	riskAmount := m.equity * m.EffectiveRiskFraction(realizedPnL)
	qty := riskAmount / distance

	if limits.LotStep > 0 {
		qty = math.Floor(qty/limits.LotStep) * limits.LotStep
	}
	if limits.MinQty > 0 && qty < limits.MinQty {
		qty = limits.MinQty
	}
	if limits.MaxQty > 0 && qty > limits.MaxQty {
		qty = limits.MaxQty
	}
	return math.Max(0, qty)
}

// Breached reports whether drawdown has reached the max daily loss fraction.
// Boundary equality counts as breached.
func (m *Manager) Breached(realizedPnL float64) bool {
	return m.drawdown(realizedPnL) >= m.maxDailyLossFraction
}
