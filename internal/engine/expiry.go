package engine

import (
	"sort"

	"github.com/efreitasn/marketsim/internal/domain"
)

// insertByAge keeps byAge sorted by CreatedAt ascending. Orders normally
// arrive in time order, so the search almost always lands at the end.
func (ob *OrderBook) insertByAge(order *domain.Order) {
	n := len(ob.byAge)
	if n == 0 || ob.byAge[n-1].CreatedAt <= order.CreatedAt {
		ob.byAge = append(ob.byAge, order)
		return
	}
	idx := sort.Search(n, func(i int) bool {
		return ob.byAge[i].CreatedAt > order.CreatedAt
	})
	ob.byAge = append(ob.byAge, nil)
	copy(ob.byAge[idx+1:], ob.byAge[idx:])
	ob.byAge[idx] = order
}

// ExpireBefore cancels every active order created strictly before cutoff
// and removes it from the book. The expired orders are returned as copies,
// oldest first.
func (ob *OrderBook) ExpireBefore(cutoff float64) []domain.Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var expired []domain.Order
	i := 0
	for ; i < len(ob.byAge); i++ {
		o := ob.byAge[i]
		if o.CreatedAt >= cutoff {
			break
		}
		if !o.Active() {
			continue
		}
		ob.remove(o)
		o.Cancel()
		expired = append(expired, *o)
	}
	if i > 0 {
		ob.byAge = ob.byAge[i:]
	}
	return expired
}

// compactByAge drops filled and cancelled orders from the age index.
func (ob *OrderBook) compactByAge() {
	kept := ob.byAge[:0]
	for _, o := range ob.byAge {
		if o.Active() {
			kept = append(kept, o)
		}
	}
	for i := len(kept); i < len(ob.byAge); i++ {
		ob.byAge[i] = nil
	}
	ob.byAge = kept
}

// ActiveOrderCount returns the number of orders tracked for expiry.
// Useful for testing.
func (ob *OrderBook) ActiveOrderCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	n := 0
	for _, o := range ob.byAge {
		if o.Active() {
			n++
		}
	}
	return n
}
