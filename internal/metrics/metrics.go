// Package metrics exposes simulation and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records simulation events as Prometheus metrics. It is a
// simulation.Sink and also provides HTTP middleware.
type Collector struct {
	TradesTotal     prometheus.Counter
	TradedQuantity  prometheus.Counter
	TradedNotional  prometheus.Counter
	TradePrice      prometheus.Histogram
	Price           prometheus.Gauge
	PendingOrders   *prometheus.GaugeVec
	BookDepth       *prometheus.GaugeVec
	AgentNetWorth   *prometheus.GaugeVec
	AgentHoldings   *prometheus.GaugeVec
	RequestDuration *prometheus.HistogramVec
}

var _ simulation.Sink = (*Collector)(nil)

// NewCollector registers the metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		TradesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_trades_total",
			Help: "Total number of executed trades",
		}),
		TradedQuantity: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_traded_quantity_total",
			Help: "Total quantity exchanged",
		}),
		TradedNotional: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_traded_notional_total",
			Help: "Total notional volume (price x quantity)",
		}),
		TradePrice: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketsim_trade_price",
			Help:    "Execution price of trades",
			Buckets: prometheus.ExponentialBuckets(10, 1.25, 20),
		}),
		Price: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_price",
			Help: "Current market price",
		}),
		PendingOrders: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketsim_pending_orders",
			Help: "Resting orders by side",
		}, []string{"side"}),
		BookDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketsim_book_depth_quantity",
			Help: "Remaining quantity in the top levels by side",
		}, []string{"side"}),
		AgentNetWorth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketsim_agent_net_worth",
			Help: "Net worth of each trader",
		}, []string{"trader_id", "strategy"}),
		AgentHoldings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketsim_agent_holdings",
			Help: "Holdings of each trader",
		}, []string{"trader_id", "strategy"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketsim_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "path", "status"}),
	}
}

func (c *Collector) LogTrades(trades []domain.Trade) error {
	for _, t := range trades {
		c.TradesTotal.Inc()
		c.TradedQuantity.Add(float64(t.Quantity))
		c.TradedNotional.Add(t.Notional())
		c.TradePrice.Observe(t.Price)
	}
	return nil
}

func (c *Collector) LogPrice(p simulation.PriceSnapshot) error {
	c.Price.Set(p.Price)
	c.PendingOrders.WithLabelValues(string(domain.SideBuy)).Set(float64(p.BuyOrders))
	c.PendingOrders.WithLabelValues(string(domain.SideSell)).Set(float64(p.SellOrders))
	return nil
}

func (c *Collector) LogAgents(_ float64, agents []agent.Snapshot) error {
	for _, a := range agents {
		id := strconv.Itoa(a.ID)
		c.AgentNetWorth.WithLabelValues(id, a.Strategy.String()).Set(a.NetWorth)
		c.AgentHoldings.WithLabelValues(id, a.Strategy.String()).Set(float64(a.Holdings))
	}
	return nil
}

func (c *Collector) LogDepth(d simulation.DepthSnapshot) error {
	var bids, asks int64
	for _, l := range d.Bids {
		bids += l.Quantity
	}
	for _, l := range d.Asks {
		asks += l.Quantity
	}
	c.BookDepth.WithLabelValues(string(domain.SideBuy)).Set(float64(bids))
	c.BookDepth.WithLabelValues(string(domain.SideSell)).Set(float64(asks))
	return nil
}

// Middleware records request latency labelled by the matched route
// pattern, so path parameters do not explode the label set.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.RequestDuration.WithLabelValues(r.Method, path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
