package service

import (
	"context"
	"testing"
	"time"

	"github.com/efreitasn/marketsim/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunnerSim() *simulation.Engine {
	return simulation.New(simulation.Config{
		Traders:         6,
		InitialPrice:    100,
		InitialCash:     10_000,
		InitialHoldings: 50,
		Seed:            1,
	}, nil, nil)
}

func TestRunner_StopsAtDuration(t *testing.T) {
	sim := newRunnerSim()
	r := NewRunner(sim, time.Millisecond, time.Second, nil)
	r.Start(context.Background())

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish")
	}

	// 1 simulated second at 0.1 s per tick.
	assert.Equal(t, int64(10), sim.Ticks())
	assert.True(t, r.Finished())
}

func TestRunner_StopsOnCancel(t *testing.T) {
	sim := newRunnerSim()
	r := NewRunner(sim, time.Millisecond, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	require.Eventually(t, func() bool { return sim.Ticks() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}

	ticks := sim.Ticks()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, ticks, sim.Ticks(), "ticks advanced after stop")
	assert.False(t, r.Finished())
}

func TestRunner_TimeScaleRefinesStep(t *testing.T) {
	sim := newRunnerSim()
	require.NoError(t, sim.SetTimeScale(2))
	r := NewRunner(sim, time.Millisecond, time.Second, nil)
	r.Start(context.Background())

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish")
	}
	// 0.05 s per tick.
	assert.Equal(t, int64(20), sim.Ticks())
}
