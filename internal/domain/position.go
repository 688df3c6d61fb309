package domain

import "time"

// PositionState is the lifecycle state of a per-symbol position.
type PositionState string

const (
	PositionFlat  PositionState = "FLAT"
	PositionLong  PositionState = "LONG"
	PositionShort PositionState = "SHORT"
)

// Side is the direction of a proposed signal.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
	SideFlat  Side = "FLAT"
)

// TradeReason tags why a trade record was emitted.
type TradeReason string

const (
	ReasonEntry      TradeReason = "ENTRY"
	ReasonPartialTP  TradeReason = "TP1"
	ReasonStopLoss   TradeReason = "STOP"
	ReasonExitSignal TradeReason = "EXIT"
	ReasonKillSwitch TradeReason = "KILLSWITCH"
)

// Position is the current state of one symbol's position. Quantity and
// EntryPrice are meaningful only while State != FLAT; TP1Done holds only
// while a position is open.
type Position struct {
	State      PositionState
	Quantity   float64
	EntryPrice float64
	TP1Done    bool
}

// Open reports whether the position holds any quantity.
func (p Position) Open() bool {
	return p.State != PositionFlat
}

// UnrealizedPnL returns the mark-to-market profit at the given price.
// Zero when flat.
func (p Position) UnrealizedPnL(price float64) float64 {
	switch p.State {
	case PositionLong:
		return (price - p.EntryPrice) * p.Quantity
	case PositionShort:
		return (p.EntryPrice - price) * p.Quantity
	default:
		return 0
	}
}

// Reset clears the position back to flat.
func (p *Position) Reset() {
	p.State = PositionFlat
	p.Quantity = 0
	p.EntryPrice = 0
	p.TP1Done = false
}

// Signal is the advisory decision produced per symbol per cycle. The engine's
// state machine performs the actual transition.
type Signal struct {
	Side           Side
	ReferencePrice float64
	StopPrice      float64
	Reason         string
}

// TradeRecord is emitted once per realized state transition. Ownership passes
// to the ledger; the engine does not retain it.
type TradeRecord struct {
	ID          string
	Timestamp   time.Time
	Mode        string // "paper" | "live"
	Symbol      string
	Side        string // BUY, SELL, SELL_TP1, SELL_STOP, ...
	Reason      TradeReason
	Quantity    float64
	Price       float64
	PnL         float64
	EquityAfter float64
}
