package sink

import (
	"errors"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/simulation"
)

// Fanout forwards every event to each sink. A failing sink does not stop
// the others; their errors are joined.
type Fanout []simulation.Sink

var _ simulation.Sink = Fanout(nil)

func (f Fanout) each(fn func(simulation.Sink) error) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, fn(s))
	}
	return errors.Join(errs...)
}

func (f Fanout) LogTrades(trades []domain.Trade) error {
	return f.each(func(s simulation.Sink) error { return s.LogTrades(trades) })
}

func (f Fanout) LogPrice(p simulation.PriceSnapshot) error {
	return f.each(func(s simulation.Sink) error { return s.LogPrice(p) })
}

func (f Fanout) LogAgents(timestamp float64, agents []agent.Snapshot) error {
	return f.each(func(s simulation.Sink) error { return s.LogAgents(timestamp, agents) })
}

func (f Fanout) LogDepth(d simulation.DepthSnapshot) error {
	return f.each(func(s simulation.Sink) error { return s.LogDepth(d) })
}
