// Package notify renders engine state to the console.
package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/breakbot/internal/backtest"
	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/optimize"
	"github.com/alejandrodnm/breakbot/internal/ports"
)

// Console implements ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole creates a notifier that writes to stdout. With table set it
// prints full per-symbol tables, otherwise a compact one-liner per cycle.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle prints the end-of-cycle status.
func (c *Console) NotifyCycle(_ context.Context, snap domain.CycleSnapshot) error {
	if c.table {
		c.printFull(snap)
	} else {
		c.printCompact(snap)
	}
	return nil
}

// NotifyTrade prints one realized state transition.
func (c *Console) NotifyTrade(_ context.Context, rec domain.TradeRecord) error {
	fmt.Fprintf(c.out, "[%s][%s] %s %s %s qty %.6f @ %.6f pnl %+.2f eq $%.2f\n",
		rec.Timestamp.Format("15:04:05"), strings.ToUpper(rec.Mode),
		rec.Reason, rec.Symbol, rec.Side, rec.Quantity, rec.Price,
		rec.PnL, rec.EquityAfter)
	return nil
}

// printCompact prints the essentials in one line.
func (c *Console) printCompact(snap domain.CycleSnapshot) {
	open, warming := countSymbols(snap.Symbols)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s][%s] cycle %d | %d syms | %d open | eq $%.2f | pnl %+.2f",
		snap.Time.Format("15:04:05"), strings.ToUpper(snap.Mode), snap.Cycle,
		len(snap.Symbols), open, snap.Equity, snap.RealizedPnL)

	if warming > 0 {
		fmt.Fprintf(&sb, " | %d warming", warming)
	}
	if snap.KillSwitch {
		sb.WriteString(" | KILL-SWITCH")
	}

	shown := 0
	for _, s := range snap.Symbols {
		if !s.Position.Open() || shown >= 4 {
			continue
		}
		fmt.Fprintf(&sb, " | %s %s %+.2f",
			s.Symbol, s.Position.State, s.Position.UnrealizedPnL(s.LastPrice))
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull prints the per-symbol table.
func (c *Console) printFull(snap domain.CycleSnapshot) {
	open, warming := countSymbols(snap.Symbols)

	fmt.Fprintf(c.out, "\n[%s][%s] cycle %d | %d open | %d warming | eq $%.2f | pnl %+.2f\n",
		snap.Time.Format("15:04:05"), strings.ToUpper(snap.Mode), snap.Cycle,
		open, warming, snap.Equity, snap.RealizedPnL)

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "State", "Qty", "Entry", "Last", "uPnL", "Upper", "Lower", "ATR", "RSI", "Ready")

	for _, s := range snap.Symbols {
		qty, entry, upnl := "-", "-", "-"
		if s.Position.Open() {
			qty = fmt.Sprintf("%.6f", s.Position.Quantity)
			entry = fmt.Sprintf("%.6f", s.Position.EntryPrice)
			upnl = fmt.Sprintf("%+.2f", s.Position.UnrealizedPnL(s.LastPrice))
		}
		table.Append(
			s.Symbol,
			string(s.Position.State),
			qty,
			entry,
			fmt.Sprintf("%.6f", s.LastPrice),
			upnl,
			indicatorLabel(s.DonchianUpper, 6),
			indicatorLabel(s.DonchianLower, 6),
			indicatorLabel(s.ATR, 6),
			indicatorLabel(s.RSI, 1),
			readyLabel(s),
		)
	}
	table.Render()

	if snap.KillSwitch {
		fmt.Fprintln(c.out, "  !! KILL-SWITCH: daily loss limit hit, all positions liquidated")
	}
}

// PrintTrades prints recent trades, oldest-first.
func (c *Console) PrintTrades(trades []domain.TradeRecord) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "\n  No trades recorded yet.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Mode", "Symbol", "Side", "Reason", "Qty", "Price", "PnL", "Equity")
	for _, rec := range trades {
		table.Append(
			rec.Timestamp.Format("01-02 15:04"),
			rec.Mode,
			rec.Symbol,
			rec.Side,
			string(rec.Reason),
			fmt.Sprintf("%.6f", rec.Quantity),
			fmt.Sprintf("%.6f", rec.Price),
			fmt.Sprintf("%+.2f", rec.PnL),
			fmt.Sprintf("$%.2f", rec.EquityAfter),
		)
	}
	table.Render()
}

// PrintStats prints the aggregate performance summary from the ledger.
func (c *Console) PrintStats(st ports.LedgerStats) {
	pfLabel := fmt.Sprintf("%.2f", st.ProfitFactor)
	if math.IsInf(st.ProfitFactor, 1) {
		pfLabel = "INF"
	}

	fmt.Fprintf(c.out, "\n=== PERFORMANCE ===\n")
	fmt.Fprintf(c.out, "  Closed trades:    %d\n", st.TradesClosed)
	fmt.Fprintf(c.out, "  Win rate:         %.1f%%\n", st.WinRatePct)
	fmt.Fprintf(c.out, "  Avg win / loss:   %+.4f / %+.4f\n", st.AvgWin, st.AvgLoss)
	fmt.Fprintf(c.out, "  Expectancy:       %+.4f per trade\n", st.Expectancy)
	fmt.Fprintf(c.out, "  Profit factor:    %s\n", pfLabel)
	fmt.Fprintf(c.out, "  PnL sum:          %+.2f\n", st.PnLSum)
	fmt.Fprintf(c.out, "  Max drawdown:     %.2f%%\n", st.MaxDrawdownPct)
}

// PrintBacktest prints one backtest result.
func (c *Console) PrintBacktest(symbol string, bars int, res backtest.Result) {
	fmt.Fprintf(c.out, "\n=== BACKTEST %s (%d bars) ===\n", symbol, bars)
	fmt.Fprintf(c.out, "  Return:        %+.2f%%\n", res.ReturnPct)
	fmt.Fprintf(c.out, "  End equity:    $%.2f\n", res.EndEquity)
	fmt.Fprintf(c.out, "  Trades:        %d\n", res.Trades)
	fmt.Fprintf(c.out, "  Max drawdown:  %.2f%%\n", res.MaxDrawdownPct)
}

// PrintWalkForward prints the per-window walk-forward report.
func (c *Console) PrintWalkForward(symbol string, report optimize.Report) {
	fmt.Fprintf(c.out, "\n=== WALK-FORWARD %s (%d windows) ===\n", symbol, len(report.Windows))

	table := tablewriter.NewWriter(c.out)
	table.Header("Win", "Train", "Test", "Entry", "Exit", "ATRx", "RSI", "Train%", "OOS%", "OOS trades")
	for _, w := range report.Windows {
		table.Append(
			fmt.Sprintf("%d", w.Index+1),
			fmt.Sprintf("%d", w.TrainBars),
			fmt.Sprintf("%d", w.TestBars),
			fmt.Sprintf("%d", w.Best.EntryLookback),
			fmt.Sprintf("%d", w.Best.ExitLookback),
			fmt.Sprintf("%.1f", w.Best.StopATRMult),
			fmt.Sprintf("%.0f", w.Best.RSIFloor),
			fmt.Sprintf("%+.2f", w.TrainReturnPct),
			fmt.Sprintf("%+.2f", w.OOSReturnPct),
			fmt.Sprintf("%d", w.OOSTrades),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  Mean out-of-sample return: %+.2f%%\n", report.MeanOOSReturnPct)
	if report.MeanOOSReturnPct > 0 {
		fmt.Fprintln(c.out, "  Strategy holds up out of sample.")
	} else {
		fmt.Fprintln(c.out, "  Strategy does NOT hold up out of sample.")
	}
}

// --- helpers ---

func countSymbols(symbols []domain.SymbolStatus) (open, warming int) {
	for _, s := range symbols {
		if s.Position.Open() {
			open++
		}
		if !s.Ready {
			warming++
		}
	}
	return
}

func indicatorLabel(v float64, decimals int) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

func readyLabel(s domain.SymbolStatus) string {
	if s.Ready {
		return "yes"
	}
	return fmt.Sprintf("%.0f%%", s.Warmup*100)
}
