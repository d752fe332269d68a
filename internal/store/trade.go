package store

import (
	"sync"

	"github.com/efreitasn/marketsim/internal/domain"
)

// TradeSummary aggregates a trade history.
type TradeSummary struct {
	Count         int64
	Quantity      int64
	Notional      float64
	SumPrice      float64
	LastTimestamp float64
}

// VWAP returns notional / quantity, or 0 when nothing traded.
func (s TradeSummary) VWAP() float64 {
	if s.Quantity == 0 {
		return 0
	}
	return s.Notional / float64(s.Quantity)
}

// AvgPrice returns the simple mean of trade prices, or 0 when nothing traded.
func (s TradeSummary) AvgPrice() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.SumPrice / float64(s.Count)
}

// Summarize computes the summary of trades from scratch.
func Summarize(trades []domain.Trade) TradeSummary {
	var s TradeSummary
	for _, t := range trades {
		s.add(t)
	}
	return s
}

func (s *TradeSummary) add(t domain.Trade) {
	s.Count++
	s.Quantity += t.Quantity
	s.Notional += t.Notional()
	s.SumPrice += t.Price
	s.LastTimestamp = t.Timestamp
}

// TradeLog is a thread-safe, append-only, chronological trade history.
// summary caches Summarize(trades) so stats are O(1); it is only ever
// updated by Append, in the same order as trades, and always equals a
// recomputation over All.
type TradeLog struct {
	mu      sync.RWMutex
	trades  []domain.Trade
	summary TradeSummary
}

// NewTradeLog creates an empty TradeLog.
func NewTradeLog() *TradeLog {
	return &TradeLog{}
}

// Append adds trades to the end of the log.
func (l *TradeLog) Append(trades ...domain.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range trades {
		l.trades = append(l.trades, t)
		l.summary.add(t)
	}
}

// All returns a copy of every trade in chronological order.
// Returns an empty slice if nothing traded.
func (l *TradeLog) All() []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.Trade, len(l.trades))
	copy(result, l.trades)
	return result
}

// Since returns a copy of the trades at positions >= offset.
func (l *TradeLog) Since(offset int) []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if offset >= len(l.trades) {
		return []domain.Trade{}
	}
	if offset < 0 {
		offset = 0
	}
	result := make([]domain.Trade, len(l.trades)-offset)
	copy(result, l.trades[offset:])
	return result
}

// Len returns the number of trades logged.
func (l *TradeLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Summary returns the cached totals.
func (l *TradeLog) Summary() TradeSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.summary
}
