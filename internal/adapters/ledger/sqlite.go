// Package ledger persists trade records and the equity history in SQLite.
//
// One row per emitted TradeRecord; equity points are appended per cycle and
// pruned on startup so the file does not grow without bound.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/breakbot/internal/domain"
	"github.com/alejandrodnm/breakbot/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id           TEXT PRIMARY KEY,
    ts           DATETIME NOT NULL,
    mode         TEXT     NOT NULL,
    symbol       TEXT     NOT NULL,
    side         TEXT     NOT NULL,
    reason       TEXT     NOT NULL,
    qty          REAL     NOT NULL,
    price        REAL     NOT NULL,
    pnl          REAL     NOT NULL DEFAULT 0,
    equity_after REAL     NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_history (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    at     DATETIME NOT NULL,
    equity REAL     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
CREATE INDEX IF NOT EXISTS idx_equity_at ON equity_history(at DESC);
`

// equityRetention caps the equity curve length; old points add nothing to
// the drawdown figure once the curve is this long.
const equityRetention = 20_000

// SQLite implements ports.TradeLedger (pure Go driver, no CGo).
type SQLite struct {
	db *sql.DB
}

var _ ports.TradeLedger = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path, applies the schema and
// prunes old equity points.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger.NewSQLite: apply schema: %w", err)
	}

	s := &SQLite{db: db}
	s.pruneEquity(context.Background())
	return s, nil
}

// SaveTrade records one realized state transition.
func (s *SQLite) SaveTrade(ctx context.Context, rec domain.TradeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (id, ts, mode, symbol, side, reason, qty, price, pnl, equity_after)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC(), rec.Mode, rec.Symbol, rec.Side, string(rec.Reason),
		rec.Quantity, rec.Price, rec.PnL, rec.EquityAfter,
	)
	if err != nil {
		return fmt.Errorf("ledger.SaveTrade %s: %w", rec.Symbol, err)
	}
	return nil
}

// SaveEquityPoint appends one equity observation.
func (s *SQLite) SaveEquityPoint(ctx context.Context, at time.Time, equity float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO equity_history (at, equity) VALUES (?, ?)`, at.UTC(), equity)
	if err != nil {
		return fmt.Errorf("ledger.SaveEquityPoint: %w", err)
	}
	return nil
}

// RecentTrades returns the latest n trades, oldest-first.
func (s *SQLite) RecentTrades(ctx context.Context, n int) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, mode, symbol, side, reason, qty, price, pnl, equity_after
		FROM (SELECT *, rowid AS row_order FROM trades ORDER BY ts DESC, rowid DESC LIMIT ?)
		ORDER BY ts ASC, row_order ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("ledger.RecentTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var reason string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Mode, &rec.Symbol, &rec.Side,
			&reason, &rec.Quantity, &rec.Price, &rec.PnL, &rec.EquityAfter); err != nil {
			return nil, fmt.Errorf("ledger.RecentTrades: scan: %w", err)
		}
		rec.Reason = domain.TradeReason(reason)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EquityHistory returns the recorded equity curve, oldest-first.
func (s *SQLite) EquityHistory(ctx context.Context) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT equity FROM equity_history ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("ledger.EquityHistory: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("ledger.EquityHistory: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Stats computes aggregate performance over all recorded trades. Closed
// trades are the rows with non-zero pnl, matching how the daily report has
// always counted them.
func (s *SQLite) Stats(ctx context.Context) (ports.LedgerStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pnl FROM trades WHERE pnl != 0 ORDER BY ts ASC`)
	if err != nil {
		return ports.LedgerStats{}, fmt.Errorf("ledger.Stats: %w", err)
	}
	defer rows.Close()

	var pnls []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return ports.LedgerStats{}, fmt.Errorf("ledger.Stats: scan: %w", err)
		}
		pnls = append(pnls, v)
	}
	if err := rows.Err(); err != nil {
		return ports.LedgerStats{}, fmt.Errorf("ledger.Stats: %w", err)
	}

	equity, err := s.EquityHistory(ctx)
	if err != nil {
		return ports.LedgerStats{}, err
	}

	return computeStats(pnls, equity), nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// pruneEquity keeps only the newest equityRetention points.
func (s *SQLite) pruneEquity(ctx context.Context) {
	_, _ = s.db.ExecContext(ctx, `
		DELETE FROM equity_history
		WHERE id NOT IN (SELECT id FROM equity_history ORDER BY id DESC LIMIT ?)`,
		equityRetention)
}

func computeStats(pnls, equity []float64) ports.LedgerStats {
	st := ports.LedgerStats{TradesClosed: len(pnls)}

	var winSum, lossSum float64
	var wins, losses int
	for _, p := range pnls {
		st.PnLSum += p
		if p > 0 {
			wins++
			winSum += p
		} else {
			losses++
			lossSum += p
		}
	}
	if len(pnls) > 0 {
		st.WinRatePct = float64(wins) / float64(len(pnls)) * 100
		st.Expectancy = st.PnLSum / float64(len(pnls))
	}
	if wins > 0 {
		st.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		st.AvgLoss = lossSum / float64(losses)
	}
	switch {
	case wins > 0 && losses > 0:
		st.ProfitFactor = winSum / math.Abs(lossSum)
	case wins > 0:
		st.ProfitFactor = math.Inf(1)
	}

	st.MaxDrawdownPct = maxDrawdownPct(equity)
	return st
}

// maxDrawdownPct is the largest peak-to-trough decline over the curve.
func maxDrawdownPct(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}
