package domain

// Trade is an execution between a buy and a sell order. It is immutable
// once created.
type Trade struct {
	TradeID     int64
	BuyOrderID  int64
	SellOrderID int64
	BuyerID     int
	SellerID    int
	Price       float64
	Quantity    int64
	Timestamp   float64 // simulated seconds
}

// Notional is price × quantity.
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Quantity)
}
