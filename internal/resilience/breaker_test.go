package resilience

import (
	"errors"
	"testing"
	"time"
)

// fakeClock lets tests advance breaker time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(threshold, cooldown)
	b.clock = func() time.Time { return clk.now }
	return b, clk
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		if tripped := b.OnFailure(); tripped {
			t.Fatalf("tripped after %d failures, threshold is 3", i+1)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("State=%s before threshold, expected CLOSED", b.State())
	}

	if tripped := b.OnFailure(); !tripped {
		t.Fatal("third failure should trip the breaker")
	}
	if b.State() != StateOpen {
		t.Fatalf("State=%s, expected OPEN", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow while OPEN returned %v, expected ErrCircuitOpen", err)
	}
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)

	b.OnFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow before cooldown returned %v", err)
	}

	clk.advance(time.Minute)

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow after cooldown returned %v, expected trial admission", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("State=%s, expected HALF_OPEN", b.State())
	}
	// Only one probe at a time.
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second concurrent trial allowed: %v", err)
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)

	b.OnFailure()
	clk.advance(time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow returned %v", err)
	}

	b.OnSuccess()
	if b.State() != StateClosed {
		t.Fatalf("State=%s after successful probe, expected CLOSED", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow after close returned %v", err)
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)

	b.OnFailure()
	clk.advance(time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow returned %v", err)
	}

	if tripped := b.OnFailure(); !tripped {
		t.Fatal("failed probe should report a fresh trip")
	}
	if b.State() != StateOpen {
		t.Fatalf("State=%s after failed probe, expected OPEN", b.State())
	}
	// Cooldown restarts from the failed probe.
	clk.advance(30 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow mid-cooldown returned %v", err)
	}
	clk.advance(30 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow after restarted cooldown returned %v", err)
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()

	// Counter restarted: two more failures must not trip.
	b.OnFailure()
	if tripped := b.OnFailure(); tripped {
		t.Fatal("tripped although the success reset the counter")
	}
	if b.State() != StateClosed {
		t.Fatalf("State=%s, expected CLOSED", b.State())
	}
}
