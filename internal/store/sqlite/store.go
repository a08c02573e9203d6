// Package sqlite is the SQLite persistence layer: bars, emitted signals,
// simulated trades, backtest results and strategy configs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/trading.db"
}

// Store implements every model persistence port on one database.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens the database in WAL mode and creates the schema.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume INTEGER,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS trading_signals (
			id            TEXT    PRIMARY KEY,
			symbol        TEXT    NOT NULL,
			ts            INTEGER NOT NULL,
			signal_type   TEXT    NOT NULL,
			strategy_name TEXT    NOT NULL,
			description   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON trading_signals (symbol, ts);

		CREATE TABLE IF NOT EXISTS simulated_trades (
			id                          TEXT    PRIMARY KEY,
			signal_id                   TEXT,
			symbol                      TEXT    NOT NULL,
			ts                          INTEGER NOT NULL,
			trade_type                  TEXT    NOT NULL,
			price                       REAL    NOT NULL,
			quantity                    REAL    NOT NULL,
			strategy_name               TEXT,
			cash_after_trade            REAL    NOT NULL,
			portfolio_value_after_trade REAL    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS backtest_results (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy_name          TEXT    NOT NULL,
			symbol                 TEXT    NOT NULL,
			start_date             INTEGER NOT NULL,
			end_date               INTEGER NOT NULL,
			initial_capital        REAL    NOT NULL,
			final_capital          REAL    NOT NULL,
			total_profit_loss      REAL    NOT NULL,
			percentage_profit_loss REAL    NOT NULL,
			total_trades           INTEGER NOT NULL,
			winning_trades         INTEGER NOT NULL,
			losing_trades          INTEGER NOT NULL,
			run_time               INTEGER NOT NULL,
			description            TEXT,
			trades                 TEXT
		);

		CREATE TABLE IF NOT EXISTS strategy_configs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy_name TEXT    NOT NULL,
			symbol        TEXT    NOT NULL,
			parameters    TEXT,
			enabled       INTEGER NOT NULL DEFAULT 1,
			UNIQUE (strategy_name, symbol)
		);
	`)
	return err
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Timestamps are stored as Unix milliseconds and read back in UTC.
func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
