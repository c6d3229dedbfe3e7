package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements ports.TradeJournal using SQLite. Rows are only ever
// inserted; the bot never reads them back to rebuild its state.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// Summary aggregates the journaled closed trades of a symbol.
type Summary struct {
	Trades   int
	Wins     int
	TotalPnL float64
}

// NewJournal creates a new SQLite journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/journal.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}

	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Trade journal ready", map[string]interface{}{"path": dbPath})

	return j, nil
}

// initializeSchema creates tables if they don't exist.
func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_order_id TEXT NOT NULL,
		order_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		avg_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		status TEXT NOT NULL,
		stop_order_id INTEGER NOT NULL,
		target_order_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS closed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		realized_pnl REAL NOT NULL,
		exit_price REAL NOT NULL,
		close_time TIMESTAMP NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol_created ON orders (symbol, created_at);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_symbol_close_time ON closed_trades (symbol, close_time);
	`
	_, err := j.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing SQLite database connection")
		return j.db.Close()
	}
	return nil
}

// RecordOrder stores a submitted order together with the exchange's answer.
func (j *Journal) RecordOrder(ctx context.Context, order *domain.Order, resp *ports.OrderResponse) error {
	const query = `
	INSERT INTO orders (client_order_id, order_id, symbol, side, quantity, entry_price, avg_price,
	                    stop_loss, take_profit, status, stop_order_id, target_order_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if resp == nil {
		resp = &ports.OrderResponse{}
	}
	_, err := j.db.ExecContext(ctx, query,
		order.ClientOrderID, resp.OrderID, order.Symbol, string(order.Side), order.Quantity, order.EntryPrice, resp.AvgPrice,
		order.StopLoss, order.TakeProfit, resp.Status, resp.StopOrderID, resp.TargetOrderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w: %w", order.ClientOrderID, ports.ErrQueryFailed, err)
	}
	j.logger.Debug(ctx, "Order journaled", map[string]interface{}{"clientOrderID": order.ClientOrderID, "orderID": resp.OrderID})
	return nil
}

// RecordClosedTrade stores a reconciled closed trade.
func (j *Journal) RecordClosedTrade(ctx context.Context, trade *domain.ClosedTrade) error {
	const query = `
	INSERT INTO closed_trades (symbol, side, realized_pnl, exit_price, close_time, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		trade.Symbol, string(trade.Side), trade.RealizedPnL, trade.ExitPrice, trade.CloseTime.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert closed trade for symbol %s: %w: %w", trade.Symbol, ports.ErrQueryFailed, err)
	}
	j.logger.Debug(ctx, "Closed trade journaled", map[string]interface{}{"symbol": trade.Symbol, "pnl": trade.RealizedPnL})
	return nil
}

// RecentTrades retrieves the most recent closed trades for a symbol, newest first.
func (j *Journal) RecentTrades(ctx context.Context, symbol string, limit int) ([]*domain.ClosedTrade, error) {
	const query = `
	SELECT symbol, side, realized_pnl, exit_price, close_time
	FROM closed_trades
	WHERE symbol = ? ORDER BY close_time DESC, id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.ClosedTrade, 0)
	for rows.Next() {
		trade, err := scanClosedTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed trade rows: %w", err)
	}
	return trades, nil
}

// Summarize counts the journaled trades, wins and total realized PnL of a symbol.
func (j *Journal) Summarize(ctx context.Context, symbol string) (Summary, error) {
	const query = `
	SELECT COUNT(*), COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0), COALESCE(SUM(realized_pnl), 0)
	FROM closed_trades WHERE symbol = ?`

	var s Summary
	if err := j.db.QueryRowContext(ctx, query, symbol).Scan(&s.Trades, &s.Wins, &s.TotalPnL); err != nil {
		return Summary{}, fmt.Errorf("failed to summarize trades for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return s, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClosedTrade(s scanner) (*domain.ClosedTrade, error) {
	t := &domain.ClosedTrade{}
	var side string
	if err := s.Scan(&t.Symbol, &side, &t.RealizedPnL, &t.ExitPrice, &t.CloseTime); err != nil {
		return nil, err
	}
	t.Side = domain.OrderSide(side)
	return t, nil
}
