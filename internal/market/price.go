// Package market holds the price model that turns order flow into price
// movement.
package market

import (
	"math/rand/v2"
	"sync"
)

const (
	// HistoryCapacity bounds the price history. Oldest points are evicted.
	HistoryCapacity = 1000

	pressureFactor = 0.1
	pressureDecay  = 0.8
	floorFactor    = 0.2
	ceilFactor     = 3.0
)

// NoiseFunc returns the random perturbation added on each update.
type NoiseFunc func() float64

// Option configures a PriceModel.
type Option func(*PriceModel)

// WithSeed seeds the default uniform noise source. The model uses PCG
// stream 0 of the seed; traders use the following streams.
func WithSeed(seed uint64) Option {
	return func(m *PriceModel) {
		rng := rand.New(rand.NewPCG(seed, 0))
		m.noise = func() float64 { return rng.Float64() - 0.5 }
	}
}

// WithNoise replaces the noise source.
func WithNoise(fn NoiseFunc) Option {
	return func(m *PriceModel) {
		m.noise = fn
	}
}

// PriceModel maintains the current price, a bounded history and decayed
// buy/sell pressure accumulators.
//
// Update is called once per tick by the engine. Reads may come from other
// goroutines (the HTTP surface), so state is guarded by a RWMutex.
type PriceModel struct {
	mu           sync.RWMutex
	current      float64
	base         float64
	history      []float64
	buyPressure  int64
	sellPressure int64
	noise        NoiseFunc
}

// NewPriceModel creates a model at basePrice. The history starts with the
// base price. Without options the noise is seeded with 0.
func NewPriceModel(basePrice float64, opts ...Option) *PriceModel {
	m := &PriceModel{
		current: basePrice,
		base:    basePrice,
		history: make([]float64, 1, 64),
	}
	m.history[0] = basePrice
	WithSeed(0)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update folds one tick of order flow into the pressure accumulators and
// moves the price by (buy - sell) × 0.1 plus noise, clamped to
// [0.2 × base, 3 × base]. The accumulators then decay by 20%, truncating
// toward zero.
func (m *PriceModel) Update(buyQty, sellQty int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buyPressure += buyQty
	m.sellPressure += sellQty

	pressure := float64(m.buyPressure-m.sellPressure) * pressureFactor
	m.current += pressure + m.noise()
	m.current = max(m.base*floorFactor, min(m.current, m.base*ceilFactor))

	if len(m.history) == HistoryCapacity {
		copy(m.history, m.history[1:])
		m.history = m.history[:HistoryCapacity-1]
	}
	m.history = append(m.history, m.current)

	m.buyPressure = int64(float64(m.buyPressure) * pressureDecay)
	m.sellPressure = int64(float64(m.sellPressure) * pressureDecay)

	return m.current
}

// CurrentPrice returns the latest price.
func (m *PriceModel) CurrentPrice() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// BasePrice returns the reference price the bounds derive from.
func (m *PriceModel) BasePrice() float64 {
	return m.base
}

// Bounds returns the lowest and highest price the model can reach.
func (m *PriceModel) Bounds() (lo, hi float64) {
	return m.base * floorFactor, m.base * ceilFactor
}

// Pressure returns the buy and sell accumulators.
func (m *PriceModel) Pressure() (buy, sell int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buyPressure, m.sellPressure
}

// RecentHistory returns a copy of the last n points, or all of them when
// fewer are held. n <= 0 returns an empty slice.
func (m *PriceModel) RecentHistory(n int) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 {
		return []float64{}
	}
	start := max(len(m.history)-n, 0)
	result := make([]float64, len(m.history)-start)
	copy(result, m.history[start:])
	return result
}

// History returns a copy of the full history.
func (m *PriceModel) History() []float64 {
	return m.RecentHistory(HistoryCapacity)
}

// HistoryLen returns the number of points held.
func (m *PriceModel) HistoryLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}
