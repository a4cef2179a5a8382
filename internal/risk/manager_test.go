package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tradeflow/internal/signal"
	"tradeflow/pkg/exchanges/common"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func buySignal() *signal.Signal {
	return &signal.Signal{
		Action:      signal.ActionBuy,
		EntryPrice:  dec("50000"),
		StopLoss:    dec("49000"),
		TakeProfit1: dec("52000"),
		TakeProfit2: dec("53000"),
		Confidence:  1,
	}
}

func TestStopDistanceSizing(t *testing.T) {
	// equity=10000, riskPerTrade=1%, entry=50000, stop=49000
	// => size = (0.01*10000)/1000 = 0.1 exactly
	snap := Snapshot{Equity: dec("10000")}
	cfg := DefaultConfig()
	cfg.MaxPositionPct = dec("50") // keep the position-value cap out of the way

	got, err := Evaluate(buySignal(), snap, cfg)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !got.Size.Equal(dec("0.1")) {
		t.Fatalf("Size=%s, expected 0.1", got.Size)
	}
	if got.Leverage != 1 {
		t.Fatalf("Leverage=%d, expected 1", got.Leverage)
	}
}

func TestATRSizing(t *testing.T) {
	// riskAmount = 100, ATR=200, multiplier=1.5 => 100/300 = 0.333...
	// floored to step 0.001 => 0.333
	sig := buySignal()
	atr := dec("200")
	sig.ATR = &atr
	cfg := DefaultConfig()
	cfg.MaxPositionPct = dec("200")

	got, err := Evaluate(sig, Snapshot{Equity: dec("10000")}, cfg)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !got.Size.Equal(dec("0.333")) {
		t.Fatalf("Size=%s, expected 0.333", got.Size)
	}
}

func TestExplicitSizeWins(t *testing.T) {
	sig := buySignal()
	size := dec("0.0155")
	sig.PositionSize = &size

	got, err := Evaluate(sig, Snapshot{Equity: dec("1000000")}, DefaultConfig())
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	// Explicit sizes still round down to the quantity step.
	if !got.Size.Equal(dec("0.015")) {
		t.Fatalf("Size=%s, expected 0.015", got.Size)
	}
}

func TestRejections(t *testing.T) {
	fivePositions := make([]common.Position, 5)
	bigSize := dec("1")

	tests := []struct {
		name      string
		mutate    func(*signal.Signal)
		snap      Snapshot
		wantLimit Limit
	}{
		{
			name:      "max positions reached",
			mutate:    func(*signal.Signal) {},
			snap:      Snapshot{Equity: dec("10000"), OpenPositions: fivePositions},
			wantLimit: LimitMaxPositions,
		},
		{
			name:      "daily loss limit breached",
			mutate:    func(*signal.Signal) {},
			snap:      Snapshot{Equity: dec("10000"), DailyRealizedPnL: dec("-500")},
			wantLimit: LimitDailyLoss,
		},
		{
			name: "explicit size exceeds position value",
			mutate: func(s *signal.Signal) {
				s.PositionSize = &bigSize // notional 50000 vs max 1000
			},
			snap:      Snapshot{Equity: dec("10000")},
			wantLimit: LimitPositionValue,
		},
		{
			name: "derived size rounds to zero",
			mutate: func(s *signal.Signal) {
				s.StopLoss = dec("1") // huge stop distance on tiny equity
			},
			snap:      Snapshot{Equity: dec("0.01")},
			wantLimit: LimitPositionValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := buySignal()
			tt.mutate(sig)

			_, err := Evaluate(sig, tt.snap, DefaultConfig())
			var rejected *Error
			if !errors.As(err, &rejected) {
				t.Fatalf("expected *risk.Error, got %v", err)
			}
			if rejected.Limit != tt.wantLimit {
				t.Fatalf("Limit=%s, expected %s", rejected.Limit, tt.wantLimit)
			}
		})
	}
}

func TestLeverageRejectsRatherThanRaises(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPositionPct = dec("5000") // let notional pass
	cfg.MaxLeverage = 3

	sig := buySignal()
	size := dec("1") // notional 50000 on 10000 equity -> 5x required
	sig.PositionSize = &size

	_, err := Evaluate(sig, Snapshot{Equity: dec("10000")}, cfg)
	var rejected *Error
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *risk.Error, got %v", err)
	}
	if rejected.Limit != LimitLeverage {
		t.Fatalf("Limit=%s, expected %s", rejected.Limit, LimitLeverage)
	}
}

func TestDerivedSizeCappedByPositionValue(t *testing.T) {
	// Tight stop would size 10 units (=500k notional); the cap keeps
	// notional at 10% of equity instead of rejecting.
	sig := buySignal()
	sig.StopLoss = dec("49990")

	got, err := Evaluate(sig, Snapshot{Equity: dec("10000")}, DefaultConfig())
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !got.Notional.LessThanOrEqual(dec("1000")) {
		t.Fatalf("Notional=%s, expected <= 1000", got.Notional)
	}
}
