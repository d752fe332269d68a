package simulation

import (
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/indicator"
)

// Stats derives the run's statistics from the trade history and the price
// history. With no trades the average price is the current price.
func (e *Engine) Stats() domain.SimulationStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	summary := e.book.Trades().Summary()
	stats := domain.SimulationStats{
		ElapsedTime:       e.now,
		TotalTrades:       summary.Count,
		TotalVolume:       summary.Notional,
		VWAP:              summary.VWAP(),
		AvgPrice:          summary.AvgPrice(),
		PriceVolatility:   indicator.StdDev(e.model.History()),
		PendingBuyOrders:  int64(e.book.BuyOrderCount()),
		PendingSellOrders: int64(e.book.SellOrderCount()),
		Spread:            e.book.Spread(),
	}
	if summary.Count == 0 {
		stats.AvgPrice = e.model.CurrentPrice()
	}
	if bid, ok := e.book.BestBid(); ok {
		stats.BestBid = bid
	}
	if ask, ok := e.book.BestAsk(); ok {
		stats.BestAsk = ask
	}
	return stats
}
