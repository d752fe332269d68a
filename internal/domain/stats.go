package domain

// SimulationStats summarises a simulation. It is derived on demand from the
// book's trade history and the price model's history and never stored.
type SimulationStats struct {
	ElapsedTime       float64 `json:"elapsed_time"`
	TotalTrades       int64   `json:"total_trades"`
	TotalVolume       float64 `json:"total_volume"` // notional
	VWAP              float64 `json:"vwap"`
	AvgPrice          float64 `json:"avg_price"`        // simple mean of trade prices
	PriceVolatility   float64 `json:"price_volatility"` // population stddev of the price history
	PendingBuyOrders  int64   `json:"pending_buy_orders"`
	PendingSellOrders int64   `json:"pending_sell_orders"`
	BestBid           float64 `json:"best_bid"`
	BestAsk           float64 `json:"best_ask"`
	Spread            float64 `json:"spread"`
}
