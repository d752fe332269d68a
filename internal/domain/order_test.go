package domain

import "testing"

func TestOrder_FillTransitions(t *testing.T) {
	o := NewOrder(1, SideBuy, 101, 10, 0.1)
	if o.Status != OrderStatusPending {
		t.Fatalf("Status = %s, want pending", o.Status)
	}

	o.Fill(6)
	if o.Status != OrderStatusPartiallyFilled {
		t.Errorf("Status = %s, want partially_filled", o.Status)
	}
	if got := o.RemainingQuantity(); got != 4 {
		t.Errorf("RemainingQuantity() = %d, want 4", got)
	}

	o.Fill(4)
	if o.Status != OrderStatusFilled || !o.IsFilled() {
		t.Errorf("Status = %s, IsFilled = %v, want filled", o.Status, o.IsFilled())
	}
	if o.Active() {
		t.Error("filled order should not be active")
	}
}

func TestOrder_FillPanicsOnOverfill(t *testing.T) {
	o := NewOrder(1, SideSell, 99, 5, 0)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on overfill")
		}
	}()
	o.Fill(6)
}

func TestOrder_FillPanicsOnZero(t *testing.T) {
	o := NewOrder(1, SideSell, 99, 5, 0)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero fill")
		}
	}()
	o.Fill(0)
}

func TestOrder_Cancel(t *testing.T) {
	o := NewOrder(1, SideBuy, 100, 10, 0)
	o.Fill(3)
	o.Cancel()
	if o.Active() {
		t.Error("cancelled order should not be active")
	}
	if o.FilledQuantity != 3 {
		t.Errorf("FilledQuantity = %d, want 3", o.FilledQuantity)
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Error("Opposite() did not flip the side")
	}
}

func TestTrade_Notional(t *testing.T) {
	tr := Trade{Price: 99.5, Quantity: 4}
	if got := tr.Notional(); got != 398 {
		t.Errorf("Notional() = %v, want 398", got)
	}
}

func TestStrategyFor_Cycles(t *testing.T) {
	for i := 0; i < 2*len(AutonomousStrategies); i++ {
		want := AutonomousStrategies[i%len(AutonomousStrategies)]
		if got := StrategyFor(i); got != want {
			t.Errorf("StrategyFor(%d) = %v, want %v", i, got, want)
		}
		if StrategyFor(i) == StrategyHuman {
			t.Errorf("StrategyFor(%d) assigned the human strategy", i)
		}
	}
}

func TestStrategy_String(t *testing.T) {
	tests := map[Strategy]string{
		StrategyMomentum:      "Momentum",
		StrategyMeanReversion: "Mean Reversion",
		StrategyRiskAverse:    "Risk Averse",
		StrategyHighRisk:      "High Risk",
		StrategyHuman:         "Human",
		Strategy(99):          "Unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Strategy(%d).String() = %q, want %q", s, got, want)
		}
	}
}
