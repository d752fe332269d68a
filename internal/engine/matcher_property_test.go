package engine

import (
	"fmt"
	"testing"

	"github.com/efreitasn/marketsim/internal/domain"
	"pgregory.net/rapid"
)

type orderSpec struct {
	side  domain.Side
	price float64
	qty   int64
}

// genOrderSpec draws prices from a narrow integer grid so that levels are
// shared and the book crosses often.
func genOrderSpec() *rapid.Generator[orderSpec] {
	return rapid.Custom(func(t *rapid.T) orderSpec {
		side := rapid.SampledFrom([]domain.Side{domain.SideBuy, domain.SideSell}).Draw(t, "side")
		price := float64(rapid.IntRange(95, 105).Draw(t, "price"))
		qty := rapid.Int64Range(1, 50).Draw(t, "qty")
		return orderSpec{side: side, price: price, qty: qty}
	})
}

func checkFillInvariant(t *rapid.T, o *domain.Order, label string) {
	if o.FilledQuantity < 0 || o.FilledQuantity > o.Quantity {
		t.Fatalf("%s: filled %d outside [0,%d]", label, o.FilledQuantity, o.Quantity)
	}
	filled := o.Status == domain.OrderStatusFilled
	if filled != (o.FilledQuantity == o.Quantity) {
		t.Fatalf("%s: status %s with filled %d of %d", label, o.Status, o.FilledQuantity, o.Quantity)
	}
}

func checkUncrossed(t *rapid.T, book *OrderBook, label string) {
	bid, hasBid := book.BestBid()
	ask, hasAsk := book.BestAsk()
	if hasBid && hasAsk && bid >= ask {
		t.Fatalf("%s: book crossed, best bid %v >= best ask %v", label, bid, ask)
	}
}

func TestProperty_FillInvariantAndBookValidity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook()
		rounds := rapid.IntRange(1, 10).Draw(t, "rounds")

		var all []*domain.Order
		for r := 0; r < rounds; r++ {
			n := rapid.IntRange(0, 15).Draw(t, fmt.Sprintf("orders-%d", r))
			for i := 0; i < n; i++ {
				in := genOrderSpec().Draw(t, fmt.Sprintf("order-%d-%d", r, i))
				o := domain.NewOrder(i, in.side, in.price, in.qty, float64(r))
				book.AddOrder(o)
				all = append(all, o)
			}

			trades := book.Match()
			for i, tr := range trades {
				if tr.Quantity <= 0 {
					t.Fatalf("round %d trade %d: non-positive quantity %d", r, i, tr.Quantity)
				}
			}
			checkUncrossed(t, book, fmt.Sprintf("round %d", r))
			for i, o := range all {
				checkFillInvariant(t, o, fmt.Sprintf("round %d order %d", r, i))
			}
		}
	})
}

func TestProperty_TradedQuantityBalances(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook()
		n := rapid.IntRange(1, 40).Draw(t, "n")

		var all []*domain.Order
		for i := 0; i < n; i++ {
			in := genOrderSpec().Draw(t, fmt.Sprintf("order-%d", i))
			o := domain.NewOrder(i, in.side, in.price, in.qty, 0)
			book.AddOrder(o)
			all = append(all, o)
		}
		trades := book.Match()

		var bought, sold, traded int64
		for _, o := range all {
			if o.Side == domain.SideBuy {
				bought += o.FilledQuantity
			} else {
				sold += o.FilledQuantity
			}
		}
		byOrder := make(map[int64]int64)
		for _, tr := range trades {
			traded += tr.Quantity
			byOrder[tr.BuyOrderID] += tr.Quantity
			byOrder[tr.SellOrderID] += tr.Quantity
		}
		if bought != sold || bought != traded {
			t.Fatalf("bought %d, sold %d, traded %d should all be equal", bought, sold, traded)
		}
		for _, o := range all {
			if byOrder[o.OrderID] != o.FilledQuantity {
				t.Fatalf("order %d: trades sum to %d, filled %d", o.OrderID, byOrder[o.OrderID], o.FilledQuantity)
			}
		}
	})
}

func TestProperty_ExecutionPriceWithinLimits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook()
		n := rapid.IntRange(1, 40).Draw(t, "n")

		orders := make(map[int64]*domain.Order)
		for i := 0; i < n; i++ {
			in := genOrderSpec().Draw(t, fmt.Sprintf("order-%d", i))
			o := domain.NewOrder(i, in.side, in.price, in.qty, 0)
			orders[book.AddOrder(o)] = o
		}

		for _, tr := range book.Match() {
			buy, sell := orders[tr.BuyOrderID], orders[tr.SellOrderID]
			if tr.Price != sell.Price {
				t.Fatalf("trade %d at %v, want sell price %v", tr.TradeID, tr.Price, sell.Price)
			}
			if tr.Price > buy.Price {
				t.Fatalf("trade %d at %v above buy limit %v", tr.TradeID, tr.Price, buy.Price)
			}
		}
	})
}

func TestProperty_CleanupIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook()
		n := rapid.IntRange(0, 30).Draw(t, "n")
		for i := 0; i < n; i++ {
			in := genOrderSpec().Draw(t, fmt.Sprintf("order-%d", i))
			book.AddOrder(domain.NewOrder(i, in.side, in.price, in.qty, 0))
		}
		book.Match()

		bids := book.Depth(domain.SideBuy, 100)
		asks := book.Depth(domain.SideSell, 100)
		book.Cleanup()
		book.Cleanup()

		if fmt.Sprint(bids) != fmt.Sprint(book.Depth(domain.SideBuy, 100)) {
			t.Fatalf("cleanup changed bid depth")
		}
		if fmt.Sprint(asks) != fmt.Sprint(book.Depth(domain.SideSell, 100)) {
			t.Fatalf("cleanup changed ask depth")
		}
	})
}
