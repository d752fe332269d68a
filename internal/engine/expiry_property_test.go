package engine

import (
	"fmt"
	"testing"

	"github.com/efreitasn/marketsim/internal/domain"
	"pgregory.net/rapid"
)

func TestProperty_ExpireBeforeCancelsExactlyStaleOrders(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "numOrders")
		book := NewOrderBook()

		// Only bids, so nothing matches. Creation times arrive out of order
		// to exercise the sorted insert.
		stale := make(map[int64]bool)
		cutoff := float64(rapid.IntRange(0, 21).Draw(t, "cutoff"))
		for i := 0; i < n; i++ {
			createdAt := float64(rapid.IntRange(0, 20).Draw(t, fmt.Sprintf("createdAt-%d", i)))
			id := book.AddOrder(domain.NewOrder(i, domain.SideBuy, 100, 1, createdAt))
			if createdAt < cutoff {
				stale[id] = true
			}
		}

		expired := book.ExpireBefore(cutoff)
		if len(expired) != len(stale) {
			t.Fatalf("expired %d orders, want %d", len(expired), len(stale))
		}
		for i, o := range expired {
			if !stale[o.OrderID] {
				t.Fatalf("order %d (created %v) expired with cutoff %v", o.OrderID, o.CreatedAt, cutoff)
			}
			if o.Status != domain.OrderStatusCancelled {
				t.Fatalf("order %d: status %s, want cancelled", o.OrderID, o.Status)
			}
			if i > 0 && o.CreatedAt < expired[i-1].CreatedAt {
				t.Fatalf("expired orders not oldest first: %v after %v", o.CreatedAt, expired[i-1].CreatedAt)
			}
			if _, ok := book.Order(o.OrderID); ok {
				t.Fatalf("order %d still in the book after expiry", o.OrderID)
			}
		}

		remaining := n - len(stale)
		if got := book.BuyOrderCount(); got != remaining {
			t.Fatalf("BuyOrderCount = %d, want %d", got, remaining)
		}
		if got := book.ActiveOrderCount(); got != remaining {
			t.Fatalf("ActiveOrderCount = %d, want %d", got, remaining)
		}

		// A second sweep with the same cutoff is a no-op.
		if again := book.ExpireBefore(cutoff); len(again) != 0 {
			t.Fatalf("second sweep expired %d orders", len(again))
		}
	})
}
