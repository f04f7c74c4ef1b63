package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"swingback/internal/engine"
)

// SQLiteRecorder persists runs and their trade logs to a SQLite
// database.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs
// migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so result browsers can read while a run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at           INTEGER NOT NULL,
			start_date           TEXT NOT NULL,
			end_date             TEXT NOT NULL,
			mode                 TEXT NOT NULL,
			initial_capital      REAL,
			final_value          REAL,
			total_return         REAL,
			annualized_return    REAL,
			max_drawdown         REAL,
			sharpe_ratio         REAL,
			total_trades         INTEGER,
			win_rate             REAL,
			avg_profit_per_trade REAL,
			avg_holding_days     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS run_trades (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       INTEGER NOT NULL REFERENCES runs(id),
			date         TEXT NOT NULL,
			action       TEXT NOT NULL,
			ticker       TEXT NOT NULL,
			quantity     INTEGER,
			price        REAL,
			fee          REAL,
			amount       REAL,
			profit       REAL,
			profit_rate  REAL,
			holding_days INTEGER,
			reason       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_trades_run ON run_trades(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun inserts the run row and its trade log in one transaction.
func (r *SQLiteRecorder) RecordRun(result *engine.Result) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO runs (
			created_at, start_date, end_date, mode,
			initial_capital, final_value, total_return, annualized_return,
			max_drawdown, sharpe_ratio, total_trades, win_rate,
			avg_profit_per_trade, avg_holding_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(),
		result.StartDate,
		result.EndDate,
		result.Mode,
		result.InitialCapital.InexactFloat64(),
		result.FinalValue.InexactFloat64(),
		result.TotalReturn,
		result.AnnualizedReturn,
		result.MaxDrawdown,
		result.SharpeRatio,
		result.TotalTrades,
		result.WinRate,
		result.AvgProfitPerTrade.InexactFloat64(),
		result.AvgHoldingDays,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_trades (
			run_id, date, action, ticker, quantity, price, fee, amount,
			profit, profit_rate, holding_days, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trades: %w", err)
	}
	defer stmt.Close()

	for _, tr := range result.TradeHistory {
		_, err := stmt.Exec(
			runID,
			tr.Date.Format(time.DateOnly),
			string(tr.Action),
			tr.Ticker,
			tr.Quantity,
			tr.Price.InexactFloat64(),
			tr.Fee.InexactFloat64(),
			tr.Amount.InexactFloat64(),
			tr.Profit.InexactFloat64(),
			tr.ProfitRate,
			tr.HoldingDays,
			tr.Reason,
		)
		if err != nil {
			return fmt.Errorf("insert trade %s %s: %w", tr.Ticker, tr.Action, err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
