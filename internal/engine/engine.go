// Package engine runs the per-cycle trading loop: it owns every symbol's
// position lifecycle and is the only writer of position and PnL state.
//
// Per symbol the cycle order is fixed: partial take-profit, stop-loss,
// circuit breaker, entry. Exits are evaluated before the breaker so a
// volatility spike can never suppress a risk control. The portfolio
// kill-switch runs once per cycle after every symbol has been processed.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/indicator"
	"github.com/alejandrodnm/breakbot/internal/ports"
	"github.com/alejandrodnm/breakbot/internal/risk"
	"github.com/alejandrodnm/breakbot/internal/strategy"
)

const (
	defaultBreakerThreshold = 0.05
	defaultHealthCheckEvery = 100
)

// Config holds the engine-loop settings.
type Config struct {
	Mode      string // "paper" | "live"
	Symbols   []string
	Timeframe string
	BarLimit  int

	StartEquity  float64
	RiskFraction float64
	MaxDailyLoss float64 // kill-switch threshold; 0 disables

	Strategy  strategy.Params
	PartialTP strategy.PartialTP
	Limits    risk.Limits

	// BreakerThreshold pauses entries for a symbol when the price jumps
	// more than this fraction between cycles.
	BreakerThreshold float64

	// MaxSpread and MinVolume gate new entries only; 0 disables.
	MaxSpread float64
	MinVolume float64

	// HealthCheckEvery polls the exchange balance every N cycles in live
	// mode.
	HealthCheckEvery int
}

// Engine owns the per-symbol position state machine. All state mutation
// happens on the caller's goroutine; RunCycle is not safe for concurrent use.
type Engine struct {
	cfg      Config
	md       ports.MarketData
	exec     ports.OrderExecutor
	ledger   ports.TradeLedger
	notifier ports.Notifier

	rm    *risk.Manager
	strat *strategy.Breakout

	positions  map[string]*domain.Position
	lastPrices map[string]float64
	realized   float64
	cycle      int
	killed     bool

	clock func() time.Time
}

// New creates an engine with every symbol starting flat.
func New(cfg Config, md ports.MarketData, exec ports.OrderExecutor, ledger ports.TradeLedger, notifier ports.Notifier) *Engine {
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = defaultBreakerThreshold
	}
	if cfg.HealthCheckEvery <= 0 {
		cfg.HealthCheckEvery = defaultHealthCheckEvery
	}
	if cfg.BarLimit <= 0 {
		cfg.BarLimit = cfg.Strategy.Warmup() + 50
	}
	cfg.PartialTP = cfg.PartialTP.Normalize()

	positions := make(map[string]*domain.Position, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		pos := &domain.Position{}
		pos.Reset()
		positions[sym] = pos
	}

	return &Engine{
		cfg:        cfg,
		md:         md,
		exec:       exec,
		ledger:     ledger,
		notifier:   notifier,
		rm:         risk.NewManager(cfg.StartEquity, cfg.RiskFraction, cfg.MaxDailyLoss),
		strat:      strategy.New(cfg.Strategy),
		positions:  positions,
		lastPrices: make(map[string]float64, len(cfg.Symbols)),
		clock:      time.Now,
	}
}

// Killed reports whether the kill-switch has fired. Once true the loop must
// not call RunCycle again.
func (e *Engine) Killed() bool { return e.killed }

// RealizedPnL returns the realized PnL since engine start.
func (e *Engine) RealizedPnL() float64 { return e.realized }

// RunCycle processes every symbol once, evaluates the portfolio kill-switch
// and reports the resulting snapshot. A failure in one symbol is logged and
// isolated; only the notifier and ledger stay best-effort as well, so the
// returned error is always nil today and reserved for fatal conditions.
func (e *Engine) RunCycle(ctx context.Context) (domain.CycleSnapshot, error) {
	e.cycle++

	statuses := make([]domain.SymbolStatus, 0, len(e.cfg.Symbols))
	for _, sym := range e.cfg.Symbols {
		st, err := e.processSymbol(ctx, sym)
		if err != nil {
			slog.Warn("engine: symbol cycle failed", "symbol", sym, "err", err)
		}
		statuses = append(statuses, st)
	}

	e.checkKillSwitch(ctx)

	snap := e.snapshot(statuses)
	if err := e.ledger.SaveEquityPoint(ctx, snap.Time, snap.Equity); err != nil {
		slog.Warn("engine: save equity point", "err", err)
	}
	if err := e.notifier.NotifyCycle(ctx, snap); err != nil {
		slog.Warn("engine: notify cycle", "err", err)
	}

	if e.cfg.Mode == "live" && e.cycle%e.cfg.HealthCheckEvery == 0 {
		e.healthCheck(ctx)
	}

	return snap, nil
}

// processSymbol runs the fixed per-symbol sequence and returns the symbol's
// slice of the cycle snapshot. The returned status is valid even on error.
func (e *Engine) processSymbol(ctx context.Context, sym string) (domain.SymbolStatus, error) {
	pos := e.positions[sym]
	st := domain.SymbolStatus{Symbol: sym, Position: *pos, LastPrice: e.lastPrices[sym]}

	bars, err := e.md.FetchBars(ctx, sym, e.cfg.Timeframe, e.cfg.BarLimit)
	if err != nil {
		return st, fmt.Errorf("engine.processSymbol: bars %s: %w", sym, err)
	}

	tick, err := e.md.FetchTicker(ctx, sym)
	if err != nil {
		return st, fmt.Errorf("engine.processSymbol: ticker %s: %w", sym, err)
	}
	price := tick.Last
	if price <= 0 {
		price = tick.Mid()
	}
	if price <= 0 && len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}
	if price <= 0 {
		return st, fmt.Errorf("engine.processSymbol: no price for %s", sym)
	}

	params := e.strat.Params()
	series := indicator.Compute(bars, params.EntryLookback, params.ExitLookback, params.ATRPeriod, params.RSIPeriod)
	closes := domain.Closes(bars)
	i := len(bars) - 1

	st.LastPrice = price
	st.Warmup = warmupFraction(len(bars), params.Warmup())
	if i >= 0 {
		cur := series.At(i)
		st.ATR = cur.ATR
		st.RSI = cur.RSI
		st.DonchianUpper = cur.DonchianUpperEntry
		st.DonchianLower = cur.DonchianLowerEntry
		st.Ready = i >= 1 && series.At(i-1).Ready() && cur.Ready()
	}

	if i >= 0 && pos.Open() && indicator.Ready(series.ATR[i]) {
		r := params.StopATRMult * series.ATR[i]

		if e.cfg.PartialTP.Enabled && !pos.TP1Done &&
			pos.UnrealizedPnL(price) >= e.cfg.PartialTP.TriggerR*r*pos.Quantity {
			e.partialTakeProfit(ctx, sym, pos, price)
		}

		if pos.Open() && stopBreached(*pos, price, r) {
			e.closePosition(ctx, sym, pos, price, domain.ReasonStopLoss)
		}
	}

	breakerTripped := e.breakerTripped(sym, price)
	entryBlocked := breakerTripped ||
		(e.cfg.MaxSpread > 0 && tick.Spread() > e.cfg.MaxSpread) ||
		(e.cfg.MinVolume > 0 && i >= 0 && bars[i].Volume < e.cfg.MinVolume)
	e.lastPrices[sym] = price

	if st.Ready {
		d := e.strat.Evaluate(series, closes, i, pos.State)
		switch {
		case pos.Open() && d.Exit:
			e.closePosition(ctx, sym, pos, price, domain.ReasonExitSignal)
		case !pos.Open() && d.Signal.Side != domain.SideFlat:
			if entryBlocked {
				slog.Info("engine: entry blocked", "symbol", sym,
					"breaker", breakerTripped, "signal", d.Signal.Reason)
			} else {
				e.enterPosition(ctx, sym, pos, d.Signal)
			}
		}
	}

	st.Position = *pos
	return st, nil
}

// breakerTripped reports whether the price jumped past the circuit-breaker
// threshold since the last observation. The first observation never trips.
func (e *Engine) breakerTripped(sym string, price float64) bool {
	last, ok := e.lastPrices[sym]
	if !ok || last <= 0 {
		return false
	}
	jump := (price - last) / last
	if jump < 0 {
		jump = -jump
	}
	if jump > e.cfg.BreakerThreshold {
		slog.Warn("engine: circuit breaker tripped", "symbol", sym,
			"last", last, "price", price, "jump_pct", jump*100)
		return true
	}
	return false
}

// enterPosition sizes and submits the entry order. On any failure the
// position stays flat; no partial state is recorded.
func (e *Engine) enterPosition(ctx context.Context, sym string, pos *domain.Position, sig domain.Signal) {
	qty := e.rm.PositionSize(sig.ReferencePrice, sig.StopPrice, e.cfg.Limits, e.realized)
	if qty <= 0 {
		return
	}

	side := "buy"
	if sig.Side == domain.SideShort {
		side = "sell"
	}
	fill, err := e.exec.PlaceOrder(ctx, sym, side, qty)
	if err != nil {
		slog.Warn("engine: entry order failed", "symbol", sym, "side", side, "err", err)
		return
	}

	pos.State = domain.PositionLong
	if sig.Side == domain.SideShort {
		pos.State = domain.PositionShort
	}
	pos.Quantity = qty
	pos.EntryPrice = fill.Price
	pos.TP1Done = false

	slog.Info("engine: entered position", "symbol", sym, "state", pos.State,
		"qty", qty, "price", fill.Price, "reason", sig.Reason)

	e.recordTrade(ctx, sym, entrySide(pos.State), domain.ReasonEntry, qty, fill.Price, 0)
}

// partialTakeProfit closes the configured fraction once per position. A
// failed order leaves the position unchanged; the trigger re-arms next cycle.
func (e *Engine) partialTakeProfit(ctx context.Context, sym string, pos *domain.Position, price float64) {
	closeQty := pos.Quantity * e.cfg.PartialTP.Fraction
	fill, err := e.exec.PlaceOrder(ctx, sym, closeSide(pos.State), closeQty)
	if err != nil {
		slog.Warn("engine: partial take-profit order failed", "symbol", sym, "err", err)
		return
	}

	pnl := domain.Position{State: pos.State, Quantity: closeQty, EntryPrice: pos.EntryPrice}.
		UnrealizedPnL(fill.Price)
	pos.Quantity -= closeQty
	pos.TP1Done = true
	e.realized += pnl

	slog.Info("engine: partial take-profit", "symbol", sym, "qty", closeQty,
		"price", fill.Price, "pnl", pnl)

	e.recordTrade(ctx, sym, closeLabel(pos.State, domain.ReasonPartialTP), domain.ReasonPartialTP, closeQty, fill.Price, pnl)
}

// closePosition liquidates the full remaining quantity. For the kill-switch
// the position is forced flat even when the order fails; every other reason
// keeps the position open on failure so the risk controls re-fire next cycle.
func (e *Engine) closePosition(ctx context.Context, sym string, pos *domain.Position, price float64, reason domain.TradeReason) {
	qty := pos.Quantity
	fillPrice := price

	fill, err := e.exec.PlaceOrder(ctx, sym, closeSide(pos.State), qty)
	switch {
	case err == nil:
		fillPrice = fill.Price
	case reason == domain.ReasonKillSwitch:
		slog.Error("engine: kill-switch liquidation order failed, forcing flat",
			"symbol", sym, "err", err)
	default:
		slog.Warn("engine: close order failed", "symbol", sym, "reason", reason, "err", err)
		return
	}

	pnl := pos.UnrealizedPnL(fillPrice)
	label := closeLabel(pos.State, reason)
	pos.Reset()
	e.realized += pnl

	slog.Info("engine: closed position", "symbol", sym, "reason", reason,
		"qty", qty, "price", fillPrice, "pnl", pnl)

	e.recordTrade(ctx, sym, label, reason, qty, fillPrice, pnl)
}

// checkKillSwitch evaluates the aggregate drawdown once per cycle, after all
// symbols, and liquidates everything open when breached. This is a controlled
// shutdown, not an error path.
func (e *Engine) checkKillSwitch(ctx context.Context) {
	if e.killed || e.cfg.MaxDailyLoss <= 0 {
		return
	}

	aggregate := e.realized
	for sym, pos := range e.positions {
		aggregate += pos.UnrealizedPnL(e.lastPrices[sym])
	}
	if !e.rm.Breached(aggregate) {
		return
	}

	slog.Warn("engine: kill-switch triggered, liquidating all positions",
		"event", "kill_switch", "aggregate_pnl", aggregate,
		"max_daily_loss", e.cfg.MaxDailyLoss)

	for _, sym := range e.cfg.Symbols {
		pos := e.positions[sym]
		if pos.Open() {
			e.closePosition(ctx, sym, pos, e.lastPrices[sym], domain.ReasonKillSwitch)
		}
	}
	e.killed = true
}

// healthCheck polls the exchange balance. Informational only; never feeds
// risk decisions.
func (e *Engine) healthCheck(ctx context.Context) {
	balance, err := e.exec.FetchBalance(ctx)
	if err != nil {
		slog.Warn("engine: health check failed", "err", err)
		return
	}
	slog.Info("engine: health check", "cycle", e.cycle, "assets", len(balance))
}

// recordTrade emits one record per realized transition to the ledger and the
// notifier. Persistence failures are logged, never fatal.
func (e *Engine) recordTrade(ctx context.Context, sym, side string, reason domain.TradeReason, qty, price, pnl float64) {
	rec := domain.TradeRecord{
		ID:          uuid.NewString(),
		Timestamp:   e.clock(),
		Mode:        e.cfg.Mode,
		Symbol:      sym,
		Side:        side,
		Reason:      reason,
		Quantity:    qty,
		Price:       price,
		PnL:         pnl,
		EquityAfter: e.cfg.StartEquity + e.realized,
	}
	if err := e.ledger.SaveTrade(ctx, rec); err != nil {
		slog.Warn("engine: save trade", "symbol", sym, "err", err)
	}
	if err := e.notifier.NotifyTrade(ctx, rec); err != nil {
		slog.Warn("engine: notify trade", "symbol", sym, "err", err)
	}
}

// snapshot assembles the read-only cycle view. Mark-to-market equity uses
// the last observed price per symbol.
func (e *Engine) snapshot(statuses []domain.SymbolStatus) domain.CycleSnapshot {
	equity := e.cfg.StartEquity + e.realized
	for sym, pos := range e.positions {
		equity += pos.UnrealizedPnL(e.lastPrices[sym])
	}
	return domain.CycleSnapshot{
		Time:        e.clock(),
		Mode:        e.cfg.Mode,
		Cycle:       e.cycle,
		Equity:      equity,
		RealizedPnL: e.realized,
		Symbols:     statuses,
		KillSwitch:  e.killed,
	}
}

// stopBreached checks the protective stop. Once the partial take-profit has
// fired the remainder rides a breakeven stop at the entry price.
func stopBreached(pos domain.Position, price, r float64) bool {
	switch pos.State {
	case domain.PositionLong:
		stop := pos.EntryPrice - r
		if pos.TP1Done {
			stop = pos.EntryPrice
		}
		return price <= stop
	case domain.PositionShort:
		stop := pos.EntryPrice + r
		if pos.TP1Done {
			stop = pos.EntryPrice
		}
		return price >= stop
	default:
		return false
	}
}

func entrySide(state domain.PositionState) string {
	if state == domain.PositionShort {
		return "SELL"
	}
	return "BUY"
}

// closeSide is the order side that reduces the position.
func closeSide(state domain.PositionState) string {
	if state == domain.PositionShort {
		return "buy"
	}
	return "sell"
}

// closeLabel tags the record side with the close reason, e.g. SELL_TP1.
func closeLabel(state domain.PositionState, reason domain.TradeReason) string {
	side := "SELL"
	if state == domain.PositionShort {
		side = "BUY"
	}
	return side + "_" + string(reason)
}

func warmupFraction(have, need int) float64 {
	if need <= 0 {
		return 1
	}
	f := float64(have) / float64(need)
	if f > 1 {
		return 1
	}
	return f
}
