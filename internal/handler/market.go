package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/service"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 1000
)

// MarketHandler handles HTTP requests for market data and agents.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

type priceResponse struct {
	RunID string  `json:"run_id"`
	Price float64 `json:"price"`
	Floor float64 `json:"floor"`
	Cap   float64 `json:"cap"`
	Time  float64 `json:"time"`
	Ticks int64   `json:"ticks"`
}

type historyResponse struct {
	Points int       `json:"points"`
	Prices []float64 `json:"prices"`
}

type bookLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// bookResponse keeps best_bid, best_ask and spread present as null when a
// side is empty.
type bookResponse struct {
	Bids    []bookLevelResponse `json:"bids"`
	Asks    []bookLevelResponse `json:"asks"`
	BestBid *float64            `json:"best_bid"`
	BestAsk *float64            `json:"best_ask"`
	Spread  *float64            `json:"spread"`
	Time    float64             `json:"time"`
}

type tradeResponse struct {
	TradeID     int64   `json:"trade_id"`
	BuyOrderID  int64   `json:"buy_order_id"`
	SellOrderID int64   `json:"sell_order_id"`
	BuyerID     int     `json:"buyer_id"`
	SellerID    int     `json:"seller_id"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	Timestamp   float64 `json:"timestamp"`
}

type agentResponse struct {
	ID               int     `json:"id"`
	Strategy         string  `json:"strategy"`
	Cash             float64 `json:"cash"`
	ReservedCash     float64 `json:"reserved_cash"`
	Holdings         int64   `json:"holdings"`
	ReservedHoldings int64   `json:"reserved_holdings"`
	NetWorth         float64 `json:"net_worth"`
	TotalProfit      float64 `json:"total_profit"`
	TradesExecuted   int64   `json:"trades_executed"`
	RSI              float64 `json:"rsi"`
	MACD             float64 `json:"macd"`
}

// GetPrice handles GET /market/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	p := h.marketSvc.Price()
	WriteJSON(w, http.StatusOK, priceResponse{
		RunID: p.RunID,
		Price: p.Price,
		Floor: p.Floor,
		Cap:   p.Cap,
		Time:  p.Time,
		Ticks: p.Ticks,
	})
}

// GetHistory handles GET /market/history.
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	points, ok := queryInt(w, r, "points", 0)
	if !ok {
		return
	}

	prices, err := h.marketSvc.History(points)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, historyResponse{Points: len(prices), Prices: prices})
}

// GetBook handles GET /market/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth, ok := queryInt(w, r, "depth", 0)
	if !ok {
		return
	}

	book, err := h.marketSvc.Book(depth)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		Bids:    buildLevels(book.Bids),
		Asks:    buildLevels(book.Asks),
		BestBid: book.BestBid,
		BestAsk: book.BestAsk,
		Spread:  book.Spread,
		Time:    book.Time,
	})
}

// GetStats handles GET /market/stats.
func (h *MarketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.marketSvc.Stats())
}

// GetTrades handles GET /market/trades.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultTradeLimit)
	if !ok {
		return
	}
	if limit < 1 || limit > maxTradeLimit {
		WriteError(w, http.StatusBadRequest, "validation_error", "limit must be between 1 and 1000")
		return
	}

	trades := h.marketSvc.RecentTrades(limit)
	resp := make([]tradeResponse, len(trades))
	for i, t := range trades {
		resp[i] = buildTradeResponse(t)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// ListAgents handles GET /agents.
func (h *MarketHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.marketSvc.Agents(r.URL.Query().Get("sort"))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	resp := make([]agentResponse, len(agents))
	for i, a := range agents {
		resp[i] = buildAgentResponse(a)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// queryInt parses an optional integer query parameter. On a malformed value
// it writes a 400 and returns false.
func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", key+" must be a valid integer")
		return 0, false
	}
	return v, true
}

func buildLevels(levels []engine.PriceLevel) []bookLevelResponse {
	out := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = bookLevelResponse{
			Price:         l.Price,
			TotalQuantity: l.Quantity,
			OrderCount:    l.OrderCount,
		}
	}
	return out
}

func buildTradeResponse(t domain.Trade) tradeResponse {
	return tradeResponse{
		TradeID:     t.TradeID,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		Price:       t.Price,
		Quantity:    t.Quantity,
		Timestamp:   t.Timestamp,
	}
}

func buildAgentResponse(a agent.Snapshot) agentResponse {
	return agentResponse{
		ID:               a.ID,
		Strategy:         a.Strategy.String(),
		Cash:             domain.RoundCents(a.Cash),
		ReservedCash:     domain.RoundCents(a.ReservedCash),
		Holdings:         a.Holdings,
		ReservedHoldings: a.ReservedHoldings,
		NetWorth:         domain.RoundCents(a.NetWorth),
		TotalProfit:      domain.RoundCents(a.TotalProfit),
		TradesExecuted:   a.TradesExecuted,
		RSI:              a.RSI,
		MACD:             a.MACD,
	}
}
