package agent

import (
	"testing"

	"github.com/efreitasn/marketsim/internal/domain"
	"pgregory.net/rapid"
)

// TestProperty_BalancesNeverNegative decides, settles and releases in random
// order and checks that reservations keep every balance non-negative.
func TestProperty_BalancesNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		strategy := rapid.SampledFrom(domain.AutonomousStrategies).Draw(t, "strategy")
		tr := New(Config{
			ID:       rapid.IntRange(0, 100).Draw(t, "id"),
			Strategy: strategy,
			Cash:     rapid.Float64Range(0, 5000).Draw(t, "cash"),
			Holdings: rapid.Int64Range(0, 100).Draw(t, "holdings"),
			Seed:     rapid.Uint64().Draw(t, "seed"),
		})

		type open struct {
			side      domain.Side
			limit     float64
			remaining int64
		}
		var resting []open
		tradeID := int64(0)

		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		price := 100.0
		for i := 0; i < steps; i++ {
			price = max(1, price+rapid.Float64Range(-5, 5).Draw(t, "move"))
			if intent, ok := tr.Decide(price); ok {
				resting = append(resting, open{intent.Side, intent.Price, intent.Quantity})
			}

			if len(resting) == 0 {
				continue
			}
			idx := rapid.IntRange(0, len(resting)-1).Draw(t, "idx")
			o := &resting[idx]
			if rapid.Bool().Draw(t, "fill") {
				qty := rapid.Int64Range(1, o.remaining).Draw(t, "qty")
				// Buys fill at or below their limit.
				fillPrice := o.limit
				if o.side == domain.SideBuy {
					fillPrice = o.limit * rapid.Float64Range(0.9, 1).Draw(t, "discount")
				}
				tradeID++
				if err := tr.ExecuteOrder(tradeID, o.side, fillPrice, qty, o.limit); err != nil {
					t.Fatalf("settlement of a reserved order failed: %v", err)
				}
				o.remaining -= qty
			} else {
				tr.Release(o.side, o.limit, o.remaining)
				o.remaining = 0
			}
			if o.remaining == 0 {
				resting = append(resting[:idx], resting[idx+1:]...)
			}

			if tr.Cash() < 0 || tr.Holdings() < 0 {
				t.Fatalf("negative balance: cash %v holdings %d", tr.Cash(), tr.Holdings())
			}
			if tr.AvailableHoldings() < 0 {
				t.Fatalf("holdings over-reserved: %d", tr.AvailableHoldings())
			}
		}
	})
}
