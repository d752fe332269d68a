// Package sink implements the logging collaborators of a simulation run.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/simulation"
)

// CSV file names and headers.
const (
	TradesFile      = "trades.csv"
	PricesFile      = "prices.csv"
	TraderStatsFile = "trader_stats.csv"
	OrderBookFile   = "order_book.csv"
)

var csvHeaders = map[string][]string{
	TradesFile:      {"TradeID", "Timestamp", "BuyOrderID", "SellOrderID", "BuyerID", "SellerID", "Price", "Quantity"},
	PricesFile:      {"Timestamp", "Price", "Volume", "BuyOrders", "SellOrders"},
	TraderStatsFile: {"Timestamp", "TraderID", "Strategy", "Cash", "Holdings", "NetWorth", "TotalProfit", "TradesExecuted", "RSI", "MACD"},
	OrderBookFile:   {"Timestamp", "Side", "Price", "Quantity"},
}

// CSV writes one file per event kind into a directory. It is safe for
// concurrent use.
type CSV struct {
	mu      sync.Mutex
	files   []*os.File
	writers map[string]*csv.Writer
}

var _ simulation.Sink = (*CSV)(nil)

// NewCSV creates dir if needed and truncates the four log files, writing
// their headers.
func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	s := &CSV{writers: make(map[string]*csv.Writer)}
	for _, name := range []string{TradesFile, PricesFile, TraderStatsFile, OrderBookFile} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		s.files = append(s.files, f)
		w := csv.NewWriter(f)
		s.writers[name] = w
		if err := w.Write(csvHeaders[name]); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to write %s header: %w", name, err)
		}
	}
	return s, nil
}

func ffmt(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func (s *CSV) write(name string, rows ...[]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.writers[name]
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// LogTrades appends one row per trade to trades.csv.
func (s *CSV) LogTrades(trades []domain.Trade) error {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			strconv.FormatInt(t.TradeID, 10),
			ffmt(t.Timestamp),
			strconv.FormatInt(t.BuyOrderID, 10),
			strconv.FormatInt(t.SellOrderID, 10),
			strconv.Itoa(t.BuyerID),
			strconv.Itoa(t.SellerID),
			ffmt(t.Price),
			strconv.FormatInt(t.Quantity, 10),
		})
	}
	return s.write(TradesFile, rows...)
}

// LogPrice appends a row to prices.csv.
func (s *CSV) LogPrice(p simulation.PriceSnapshot) error {
	return s.write(PricesFile, []string{
		ffmt(p.Timestamp),
		ffmt(p.Price),
		strconv.FormatInt(p.Volume, 10),
		strconv.Itoa(p.BuyOrders),
		strconv.Itoa(p.SellOrders),
	})
}

// LogAgents appends one row per trader to trader_stats.csv.
func (s *CSV) LogAgents(timestamp float64, agents []agent.Snapshot) error {
	rows := make([][]string, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, []string{
			ffmt(timestamp),
			strconv.Itoa(a.ID),
			a.Strategy.String(),
			ffmt(a.Cash),
			strconv.FormatInt(a.Holdings, 10),
			ffmt(a.NetWorth),
			ffmt(a.TotalProfit),
			strconv.FormatInt(a.TradesExecuted, 10),
			ffmt(a.RSI),
			ffmt(a.MACD),
		})
	}
	return s.write(TraderStatsFile, rows...)
}

// LogDepth appends one row per level to order_book.csv, bids first.
func (s *CSV) LogDepth(d simulation.DepthSnapshot) error {
	rows := make([][]string, 0, len(d.Bids)+len(d.Asks))
	add := func(side domain.Side, levels []engine.PriceLevel) {
		for _, l := range levels {
			rows = append(rows, []string{
				ffmt(d.Timestamp),
				strings.ToUpper(string(side)),
				ffmt(l.Price),
				strconv.FormatInt(l.Quantity, 10),
			})
		}
	}
	add(domain.SideBuy, d.Bids)
	add(domain.SideSell, d.Asks)
	return s.write(OrderBookFile, rows...)
}

// Close flushes and closes every file.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, w := range s.writers {
		w.Flush()
		errs = append(errs, w.Error())
	}
	for _, f := range s.files {
		errs = append(errs, f.Close())
	}
	s.files = nil
	return errors.Join(errs...)
}
