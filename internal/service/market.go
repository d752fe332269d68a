package service

import (
	"fmt"
	"slices"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/market"
	"github.com/efreitasn/marketsim/internal/simulation"
)

const (
	DefaultHistoryPoints = 100
	DefaultBookDepth     = 10
	MaxBookDepth         = 50
)

// Agent sort keys accepted by Agents.
const (
	SortByID       = "id"
	SortByNetWorth = "net_worth"
)

// SubmitOrderRequest represents a human order as received from the
// presentation layer.
type SubmitOrderRequest struct {
	Side     domain.Side
	Price    float64
	Quantity int64
}

// PriceResponse is the current market price with its bounds.
type PriceResponse struct {
	RunID string
	Price float64
	Floor float64
	Cap   float64
	Time  float64 // simulated seconds
	Ticks int64
}

// BookResponse is the top of the order book.
type BookResponse struct {
	Bids    []engine.PriceLevel
	Asks    []engine.PriceLevel
	BestBid *float64 // nil if the side is empty
	BestAsk *float64
	Spread  *float64 // nil if either side is empty
	Time    float64
}

// MarketService validates human orders and exposes read-only views of a
// running simulation.
type MarketService struct {
	sim *simulation.Engine
}

// NewMarketService creates a new MarketService over sim.
func NewMarketService(sim *simulation.Engine) *MarketService {
	return &MarketService{sim: sim}
}

// SubmitOrder validates the request and places it for the human trader.
func (s *MarketService) SubmitOrder(req SubmitOrderRequest) (domain.Order, error) {
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return domain.Order{}, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	price, err := domain.NormalizePrice(req.Price)
	if err != nil {
		return domain.Order{}, &domain.ValidationError{Message: err.Error()}
	}
	if req.Quantity <= 0 {
		return domain.Order{}, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	order, err := s.sim.AddHumanOrder(req.Side, price, req.Quantity)
	if err != nil {
		return domain.Order{}, fmt.Errorf("submit order: %w", err)
	}
	return order, nil
}

// GetOrder returns a resting order of the human trader.
func (s *MarketService) GetOrder(orderID int64) (domain.Order, error) {
	return s.sim.HumanOrder(orderID)
}

// CancelOrder cancels a resting order of the human trader.
func (s *MarketService) CancelOrder(orderID int64) (domain.Order, error) {
	return s.sim.CancelHumanOrder(orderID)
}

// Price returns the current price and the model's bounds.
func (s *MarketService) Price() PriceResponse {
	lo, hi := s.sim.PriceBounds()
	return PriceResponse{
		RunID: s.sim.RunID(),
		Price: s.sim.CurrentPrice(),
		Floor: lo,
		Cap:   hi,
		Time:  s.sim.Time(),
		Ticks: s.sim.Ticks(),
	}
}

// History returns the last points prices, oldest first. Zero means
// DefaultHistoryPoints.
func (s *MarketService) History(points int) ([]float64, error) {
	if points == 0 {
		points = DefaultHistoryPoints
	}
	if points < 0 || points > market.HistoryCapacity {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("points must be between 1 and %d", market.HistoryCapacity),
		}
	}
	return s.sim.RecentHistory(points), nil
}

// Book returns up to depth aggregated levels per side. Zero means
// DefaultBookDepth.
func (s *MarketService) Book(depth int) (BookResponse, error) {
	if depth == 0 {
		depth = DefaultBookDepth
	}
	if depth < 0 || depth > MaxBookDepth {
		return BookResponse{}, &domain.ValidationError{
			Message: fmt.Sprintf("depth must be between 1 and %d", MaxBookDepth),
		}
	}

	resp := BookResponse{
		Bids: s.sim.Depth(domain.SideBuy, depth),
		Asks: s.sim.Depth(domain.SideSell, depth),
		Time: s.sim.Time(),
	}
	if len(resp.Bids) > 0 {
		bid := resp.Bids[0].Price
		resp.BestBid = &bid
	}
	if len(resp.Asks) > 0 {
		ask := resp.Asks[0].Price
		resp.BestAsk = &ask
	}
	if resp.BestBid != nil && resp.BestAsk != nil {
		spread := domain.RoundCents(*resp.BestAsk - *resp.BestBid)
		resp.Spread = &spread
	}
	return resp, nil
}

// Stats returns the aggregate statistics of the run so far.
func (s *MarketService) Stats() domain.SimulationStats {
	return s.sim.Stats()
}

// RecentTrades returns the last n trades, oldest first.
func (s *MarketService) RecentTrades(n int) []domain.Trade {
	return s.sim.RecentTrades(n)
}

// Agents returns every trader's snapshot ordered by sortBy: id ascending
// (the default) or net worth descending with ties broken by id.
func (s *MarketService) Agents(sortBy string) ([]agent.Snapshot, error) {
	snaps := s.sim.Agents()
	switch sortBy {
	case "", SortByID:
		slices.SortFunc(snaps, func(a, b agent.Snapshot) int { return a.ID - b.ID })
	case SortByNetWorth:
		slices.SortStableFunc(snaps, func(a, b agent.Snapshot) int {
			switch {
			case a.NetWorth > b.NetWorth:
				return -1
			case a.NetWorth < b.NetWorth:
				return 1
			}
			return a.ID - b.ID
		})
	default:
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("sort must be one of: %s, %s", SortByID, SortByNetWorth),
		}
	}
	return snaps, nil
}
