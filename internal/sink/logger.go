package sink

import (
	"log/slog"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/simulation"
)

// Logger writes run events to a slog logger. Trades, agents and depth are
// logged at debug; price snapshots at info.
type Logger struct {
	logger *slog.Logger
}

var _ simulation.Sink = (*Logger)(nil)

// NewLogger creates a Logger sink.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) LogTrades(trades []domain.Trade) error {
	for _, t := range trades {
		l.logger.Debug("trade executed",
			slog.Int64("trade_id", t.TradeID),
			slog.Float64("timestamp", t.Timestamp),
			slog.Int("buyer_id", t.BuyerID),
			slog.Int("seller_id", t.SellerID),
			slog.Float64("price", t.Price),
			slog.Int64("quantity", t.Quantity),
		)
	}
	return nil
}

func (l *Logger) LogPrice(p simulation.PriceSnapshot) error {
	l.logger.Info("price snapshot",
		slog.Float64("timestamp", p.Timestamp),
		slog.Float64("price", p.Price),
		slog.Int64("volume", p.Volume),
		slog.Int("buy_orders", p.BuyOrders),
		slog.Int("sell_orders", p.SellOrders),
	)
	return nil
}

func (l *Logger) LogAgents(timestamp float64, agents []agent.Snapshot) error {
	for _, a := range agents {
		l.logger.Debug("agent snapshot",
			slog.Float64("timestamp", timestamp),
			slog.Int("trader_id", a.ID),
			slog.String("strategy", a.Strategy.String()),
			slog.Float64("cash", a.Cash),
			slog.Int64("holdings", a.Holdings),
			slog.Float64("net_worth", a.NetWorth),
		)
	}
	return nil
}

func (l *Logger) LogDepth(d simulation.DepthSnapshot) error {
	l.logger.Debug("depth snapshot",
		slog.Float64("timestamp", d.Timestamp),
		slog.Int("bid_levels", len(d.Bids)),
		slog.Int("ask_levels", len(d.Asks)),
	)
	return nil
}
