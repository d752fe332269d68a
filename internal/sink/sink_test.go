package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/ensemble"
	"github.com/efreitasn/marketsim/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTrade = domain.Trade{TradeID: 1, BuyOrderID: 2, SellOrderID: 1, BuyerID: 3, SellerID: 4, Price: 99, Quantity: 6, Timestamp: 0.3}
	testPrice = simulation.PriceSnapshot{Timestamp: 1, Price: 100.456, Volume: 12, BuyOrders: 3, SellOrders: 2}
	testDepth = simulation.DepthSnapshot{
		Timestamp: 1,
		Bids:      []engine.PriceLevel{{Price: 99.5, Quantity: 10, OrderCount: 2}},
		Asks:      []engine.PriceLevel{{Price: 100.5, Quantity: 4, OrderCount: 1}, {Price: 101, Quantity: 7, OrderCount: 1}},
	}
	testAgents = []agent.Snapshot{
		{ID: 0, Strategy: domain.StrategyMeanReversion, Cash: 9000, Holdings: 60, NetWorth: 15000, TotalProfit: 12.5, TradesExecuted: 3, RSI: 45, MACD: -0.25},
		{ID: 1, Strategy: domain.StrategyHuman, Cash: 10000, Holdings: 50, NetWorth: 15000},
	}
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSV_WritesHeadersAndRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	s, err := NewCSV(dir)
	require.NoError(t, err)

	require.NoError(t, s.LogTrades([]domain.Trade{testTrade}))
	require.NoError(t, s.LogPrice(testPrice))
	require.NoError(t, s.LogAgents(1, testAgents))
	require.NoError(t, s.LogDepth(testDepth))
	require.NoError(t, s.Close())

	trades := readCSV(t, filepath.Join(dir, TradesFile))
	assert.Equal(t, csvHeaders[TradesFile], trades[0])
	assert.Equal(t, []string{"1", "0.30", "2", "1", "3", "4", "99.00", "6"}, trades[1])

	prices := readCSV(t, filepath.Join(dir, PricesFile))
	assert.Equal(t, []string{"1.00", "100.46", "12", "3", "2"}, prices[1])

	stats := readCSV(t, filepath.Join(dir, TraderStatsFile))
	require.Len(t, stats, 3)
	assert.Equal(t, "Mean Reversion", stats[1][2])
	assert.Equal(t, "-0.25", stats[1][9])
	assert.Equal(t, "Human", stats[2][2])

	book := readCSV(t, filepath.Join(dir, OrderBookFile))
	require.Len(t, book, 4)
	assert.Equal(t, []string{"1.00", "BUY", "99.50", "10"}, book[1])
	assert.Equal(t, []string{"1.00", "SELL", "100.50", "4"}, book[2])
}

func TestCSV_InvalidDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewCSV(filepath.Join(file, "logs"))
	assert.Error(t, err)
}

func TestSQLite_StoresEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "run.db")
	s, err := OpenSQLite(path, "run-a")
	require.NoError(t, err)
	defer s.Close()

	second := testTrade
	second.TradeID = 2
	require.NoError(t, s.LogTrades([]domain.Trade{testTrade, second}))
	require.NoError(t, s.LogPrice(testPrice))
	require.NoError(t, s.LogAgents(1, testAgents))
	require.NoError(t, s.LogDepth(testDepth))

	n, err := s.TradeCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var agents, levels int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM trader_stats WHERE run_id = 'run-a'`).Scan(&agents))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM order_book WHERE run_id = 'run-a'`).Scan(&levels))
	assert.Equal(t, 2, agents)
	assert.Equal(t, 3, levels)

	// A duplicate trade id rolls back the whole batch.
	third := testTrade
	third.TradeID = 3
	assert.Error(t, s.LogTrades([]domain.Trade{third, testTrade}))
	n, err = s.TradeCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLite_RunsShareAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	a, err := OpenSQLite(path, "run-a")
	require.NoError(t, err)
	require.NoError(t, a.LogTrades([]domain.Trade{testTrade}))
	require.NoError(t, a.Close())

	b, err := OpenSQLite(path, "run-b")
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.LogTrades([]domain.Trade{testTrade}))

	n, err := b.TradeCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_LogEnsemble(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "ensemble.db"), "ens-1")
	require.NoError(t, err)
	defer s.Close()

	records := []ensemble.Record{
		{Index: 0, Stats: domain.SimulationStats{TotalTrades: 10, TotalVolume: 1000}},
		{Index: 1, Stats: domain.SimulationStats{TotalTrades: 4, TotalVolume: 380}},
	}
	ctx := context.Background()
	require.NoError(t, s.LogEnsemble(ctx, records))

	n, err := s.ReplicaCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var volume float64
	require.NoError(t, s.db.QueryRow(
		`SELECT total_volume FROM ensemble_replicas WHERE run_id = 'ens-1' AND replica = 1`).Scan(&volume))
	assert.Equal(t, 380.0, volume)

	// A repeated replica rolls the whole batch back.
	assert.Error(t, s.LogEnsemble(ctx, []ensemble.Record{{Index: 2}, {Index: 0}}))
	n, err = s.ReplicaCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLogger_WritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewLogger(logger)

	require.NoError(t, s.LogTrades([]domain.Trade{testTrade}))
	require.NoError(t, s.LogPrice(testPrice))
	require.NoError(t, s.LogAgents(1, testAgents))
	require.NoError(t, s.LogDepth(testDepth))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "trade executed", first["msg"])
	assert.Equal(t, float64(6), first["quantity"])
}

type errSink struct{ calls *int }

func (e errSink) fail() error                               { *e.calls++; return errors.New("boom") }
func (e errSink) LogTrades([]domain.Trade) error            { return e.fail() }
func (e errSink) LogPrice(simulation.PriceSnapshot) error   { return e.fail() }
func (e errSink) LogAgents(float64, []agent.Snapshot) error { return e.fail() }
func (e errSink) LogDepth(simulation.DepthSnapshot) error   { return e.fail() }

func TestFanout_ContinuesPastFailures(t *testing.T) {
	calls := 0
	dir := t.TempDir()
	c, err := NewCSV(dir)
	require.NoError(t, err)

	f := Fanout{errSink{&calls}, c, errSink{&calls}}
	err = f.LogTrades([]domain.Trade{testTrade})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	require.NoError(t, c.Close())

	rows := readCSV(t, filepath.Join(dir, TradesFile))
	assert.Len(t, rows, 2, "the healthy sink still received the trade")

	assert.NoError(t, Fanout{}.LogPrice(testPrice))
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.json")
	in := map[string]any{"run_id": "abc", "total_trades": 42}
	require.NoError(t, WriteJSON(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "abc", out["run_id"])
	assert.Equal(t, float64(42), out["total_trades"])
}
