package domain

import "time"

// SymbolStatus is the per-symbol slice of a cycle snapshot.
type SymbolStatus struct {
	Symbol        string
	Position      Position
	LastPrice     float64
	ATR           float64
	RSI           float64
	DonchianUpper float64
	DonchianLower float64
	Ready         bool
	Warmup        float64 // 0..1 fraction of required history available
}

// CycleSnapshot is a read-only view of the engine state at the end of one
// cycle. It is produced by value for reporting collaborators; nothing may
// write back through it.
type CycleSnapshot struct {
	Time        time.Time
	Mode        string
	Cycle       int
	Equity      float64
	RealizedPnL float64
	Symbols     []SymbolStatus
	KillSwitch  bool
}
