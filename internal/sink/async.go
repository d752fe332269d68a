package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/simulation"
)

// DefaultAsyncBuffer is the event capacity used when NewAsync gets a
// non-positive size.
const DefaultAsyncBuffer = 4096

var (
	ErrBacklogFull = errors.New("sink backlog full")
	ErrSinkClosed  = errors.New("sink closed")
)

// event is one queued call. Trades are kept apart so consecutive batches
// can be coalesced into a single write.
type event struct {
	kind   string
	trades []domain.Trade
	fn     func(simulation.Sink) error
}

// Async hands events to a writer goroutine that forwards them to next in
// order. Enqueueing never blocks: when the buffer is full the event is
// dropped and ErrBacklogFull returned. Close flushes what is queued.
type Async struct {
	next   simulation.Sink
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	events chan event
	done   chan struct{}

	dropped atomic.Int64
}

var _ simulation.Sink = (*Async)(nil)

// NewAsync starts the writer goroutine.
func NewAsync(next simulation.Sink, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	a := &Async{
		next:   next,
		logger: logger,
		events: make(chan event, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) enqueue(ev event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrSinkClosed
	}
	select {
	case a.events <- ev:
		return nil
	default:
		if n := a.dropped.Add(1); n == 1 || n%1000 == 0 {
			a.logger.Warn("sink backlog full, dropping events",
				slog.String("kind", ev.kind),
				slog.Int64("dropped", n),
			)
		}
		return ErrBacklogFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		if ev.trades == nil {
			a.apply(ev)
			continue
		}
		batch, pending := a.coalesce(ev.trades)
		a.apply(event{kind: "trades", fn: func(s simulation.Sink) error { return s.LogTrades(batch) }})
		if pending != nil {
			a.apply(*pending)
		}
	}
}

// coalesce appends the trade batches already queued behind the first one.
// It stops at the first other event and returns it as pending.
func (a *Async) coalesce(first []domain.Trade) ([]domain.Trade, *event) {
	batch := first
	for {
		select {
		case ev, ok := <-a.events:
			if !ok {
				return batch, nil
			}
			if ev.trades == nil {
				return batch, &ev
			}
			if len(batch) == len(first) {
				batch = append(make([]domain.Trade, 0, len(first)+len(ev.trades)), first...)
			}
			batch = append(batch, ev.trades...)
		default:
			return batch, nil
		}
	}
}

func (a *Async) apply(ev event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("sink panicked",
				slog.String("kind", ev.kind),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := ev.fn(a.next); err != nil {
		a.logger.Debug("sink write failed",
			slog.String("kind", ev.kind),
			slog.String("error", err.Error()),
		)
	}
}

// Dropped returns the number of events discarded on a full buffer.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are
// written. It is safe to call more than once.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

func (a *Async) LogTrades(trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return a.enqueue(event{kind: "trades", trades: trades})
}

func (a *Async) LogPrice(p simulation.PriceSnapshot) error {
	return a.enqueue(event{kind: "price", fn: func(s simulation.Sink) error { return s.LogPrice(p) }})
}

func (a *Async) LogAgents(timestamp float64, agents []agent.Snapshot) error {
	return a.enqueue(event{kind: "agents", fn: func(s simulation.Sink) error { return s.LogAgents(timestamp, agents) }})
}

func (a *Async) LogDepth(d simulation.DepthSnapshot) error {
	return a.enqueue(event{kind: "depth", fn: func(s simulation.Sink) error { return s.LogDepth(d) }})
}
