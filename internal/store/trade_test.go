package store

import (
	"sync"
	"testing"

	"github.com/efreitasn/marketsim/internal/domain"
)

func newTestTrade(id int64, price float64, qty int64) domain.Trade {
	return domain.Trade{
		TradeID:     id,
		BuyOrderID:  1,
		SellOrderID: 2,
		Price:       price,
		Quantity:    qty,
		Timestamp:   float64(id) / 10,
	}
}

func TestTradeLog_AppendAndAll(t *testing.T) {
	l := NewTradeLog()
	l.Append(newTestTrade(1, 100, 10), newTestTrade(2, 101, 5))

	trades := l.All()
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].TradeID != 1 || trades[1].TradeID != 2 {
		t.Fatalf("trades out of order: %+v", trades)
	}
}

func TestTradeLog_AllEmpty(t *testing.T) {
	l := NewTradeLog()
	trades := l.All()
	if trades == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades, got %d", len(trades))
	}
}

func TestTradeLog_AllReturnsCopy(t *testing.T) {
	l := NewTradeLog()
	l.Append(newTestTrade(1, 100, 10))

	trades := l.All()
	trades[0].Price = 1

	if got := l.All()[0].Price; got != 100 {
		t.Fatalf("internal trade mutated through copy: price %v", got)
	}
}

func TestTradeLog_Since(t *testing.T) {
	l := NewTradeLog()
	l.Append(newTestTrade(1, 100, 1), newTestTrade(2, 100, 1), newTestTrade(3, 100, 1))

	if got := l.Since(1); len(got) != 2 || got[0].TradeID != 2 {
		t.Errorf("Since(1) = %+v, want trades 2 and 3", got)
	}
	if got := l.Since(3); len(got) != 0 {
		t.Errorf("Since(3) = %+v, want empty", got)
	}
}

func TestTradeLog_Summary(t *testing.T) {
	l := NewTradeLog()
	l.Append(newTestTrade(1, 100, 10), newTestTrade(2, 110, 30))

	s := l.Summary()
	if s.Count != 2 || s.Quantity != 40 {
		t.Fatalf("Count/Quantity = %d/%d, want 2/40", s.Count, s.Quantity)
	}
	if s.Notional != 4300 {
		t.Errorf("Notional = %v, want 4300", s.Notional)
	}
	if s.VWAP() != 107.5 {
		t.Errorf("VWAP() = %v, want 107.5", s.VWAP())
	}
	if s.AvgPrice() != 105 {
		t.Errorf("AvgPrice() = %v, want 105", s.AvgPrice())
	}
}

func TestTradeSummary_Empty(t *testing.T) {
	var s TradeSummary
	if s.VWAP() != 0 || s.AvgPrice() != 0 {
		t.Errorf("empty summary should report zero prices")
	}
}

func TestTradeLog_ConcurrentAppend(t *testing.T) {
	l := NewTradeLog()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			l.Append(newTestTrade(id, 100, 1))
		}(int64(i))
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Summary()
		}()
	}
	wg.Wait()

	if l.Len() != 100 {
		t.Fatalf("expected 100 trades, got %d", l.Len())
	}
}
