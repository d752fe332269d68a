package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/ensemble"
	"github.com/efreitasn/marketsim/internal/simulation"
	_ "modernc.org/sqlite"
)

// SQLite stores the events of a run in a SQLite database. Every row is
// tagged with the run id, so several runs can share one file.
type SQLite struct {
	db    *sql.DB
	runID string
}

var _ simulation.Sink = (*SQLite)(nil)

// OpenSQLite creates or opens the database at path.
func OpenSQLite(path, runID string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; the driver serializes anyway.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, runID: runID}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT NOT NULL,
			trade_id INTEGER NOT NULL,
			timestamp REAL NOT NULL,
			buy_order_id INTEGER NOT NULL,
			sell_order_id INTEGER NOT NULL,
			buyer_id INTEGER NOT NULL,
			seller_id INTEGER NOT NULL,
			price REAL NOT NULL,
			quantity INTEGER NOT NULL,
			PRIMARY KEY (run_id, trade_id)
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			run_id TEXT NOT NULL,
			timestamp REAL NOT NULL,
			price REAL NOT NULL,
			volume INTEGER NOT NULL,
			buy_orders INTEGER NOT NULL,
			sell_orders INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trader_stats (
			run_id TEXT NOT NULL,
			timestamp REAL NOT NULL,
			trader_id INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			cash REAL NOT NULL,
			holdings INTEGER NOT NULL,
			net_worth REAL NOT NULL,
			total_profit REAL NOT NULL,
			trades_executed INTEGER NOT NULL,
			rsi REAL NOT NULL,
			macd REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_book (
			run_id TEXT NOT NULL,
			timestamp REAL NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			quantity INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ensemble_replicas (
			run_id TEXT NOT NULL,
			replica INTEGER NOT NULL,
			elapsed_time REAL NOT NULL,
			total_trades INTEGER NOT NULL,
			total_volume REAL NOT NULL,
			vwap REAL NOT NULL,
			avg_price REAL NOT NULL,
			price_volatility REAL NOT NULL,
			pending_buy_orders INTEGER NOT NULL,
			pending_sell_orders INTEGER NOT NULL,
			PRIMARY KEY (run_id, replica)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_run ON prices(run_id, timestamp)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// LogTrades inserts a batch of trades in a single transaction. A failing
// row rolls the whole batch back.
func (s *SQLite) LogTrades(trades []domain.Trade) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trades (run_id, trade_id, timestamp, buy_order_id, sell_order_id, buyer_id, seller_id, price, quantity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, s.runID, t.TradeID, t.Timestamp, t.BuyOrderID, t.SellOrderID,
			t.BuyerID, t.SellerID, t.Price, t.Quantity); err != nil {
			return fmt.Errorf("failed to insert trade %d: %w", t.TradeID, err)
		}
	}
	return tx.Commit()
}

// LogPrice inserts a price snapshot.
func (s *SQLite) LogPrice(p simulation.PriceSnapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO prices (run_id, timestamp, price, volume, buy_orders, sell_orders) VALUES (?, ?, ?, ?, ?, ?)`,
		s.runID, p.Timestamp, p.Price, p.Volume, p.BuyOrders, p.SellOrders,
	)
	if err != nil {
		return fmt.Errorf("failed to insert price: %w", err)
	}
	return nil
}

// LogAgents inserts one row per trader in a single transaction.
func (s *SQLite) LogAgents(timestamp float64, agents []agent.Snapshot) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range agents {
		_, err := tx.Exec(
			`INSERT INTO trader_stats (run_id, timestamp, trader_id, strategy, cash, holdings, net_worth, total_profit, trades_executed, rsi, macd)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, timestamp, a.ID, a.Strategy.String(), a.Cash, a.Holdings, a.NetWorth, a.TotalProfit, a.TradesExecuted, a.RSI, a.MACD,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trader %d: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// LogDepth inserts one row per level in a single transaction.
func (s *SQLite) LogDepth(d simulation.DepthSnapshot) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := func(side string, price float64, qty int64) error {
		_, err := tx.Exec(
			`INSERT INTO order_book (run_id, timestamp, side, price, quantity) VALUES (?, ?, ?, ?, ?)`,
			s.runID, d.Timestamp, side, price, qty,
		)
		return err
	}
	for _, l := range d.Bids {
		if err := insert("BUY", l.Price, l.Quantity); err != nil {
			return fmt.Errorf("failed to insert depth: %w", err)
		}
	}
	for _, l := range d.Asks {
		if err := insert("SELL", l.Price, l.Quantity); err != nil {
			return fmt.Errorf("failed to insert depth: %w", err)
		}
	}
	return tx.Commit()
}

// LogEnsemble stores one row per replica record in a single transaction.
func (s *SQLite) LogEnsemble(ctx context.Context, records []ensemble.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ensemble_replicas (run_id, replica, elapsed_time, total_trades, total_volume, vwap,
			avg_price, price_volatility, pending_buy_orders, pending_sell_orders)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		st := r.Stats
		if _, err := stmt.ExecContext(ctx, s.runID, r.Index, st.ElapsedTime, st.TotalTrades, st.TotalVolume,
			st.VWAP, st.AvgPrice, st.PriceVolatility, st.PendingBuyOrders, st.PendingSellOrders); err != nil {
			return fmt.Errorf("failed to insert replica %d: %w", r.Index, err)
		}
	}
	return tx.Commit()
}

// ReplicaCount returns the number of ensemble replicas stored for the run.
func (s *SQLite) ReplicaCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ensemble_replicas WHERE run_id = ?`, s.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count replicas: %w", err)
	}
	return n, nil
}

// TradeCount returns the number of trades stored for the run.
func (s *SQLite) TradeCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades WHERE run_id = ?`, s.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
