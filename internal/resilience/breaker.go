package resilience

import (
	"sync"
	"time"
)

// State is the breaker's position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Breaker is a three-state circuit breaker scoped per gateway
// instance and shared across symbols: a failing venue affects all
// symbols uniformly. All transitions happen under one mutex; callers
// never read-then-write its state without it.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool // a HALF_OPEN probe is in flight

	clock func() time.Time
}

// NewBreaker creates a breaker tripping after threshold consecutive
// failures and fast-failing for cooldown before probing.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether a call may proceed. While OPEN it returns
// ErrCircuitOpen until the cooldown elapses; then exactly one trial
// call is admitted in HALF_OPEN.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.trial = true
		return nil
	default: // StateHalfOpen
		if b.trial {
			return ErrCircuitOpen
		}
		b.trial = true
		return nil
	}
}

// OnSuccess resets the failure counter; a successful HALF_OPEN probe
// closes the breaker.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.trial = false
	}
}

// OnFailure counts a failure. It returns true when this failure
// tripped the breaker to OPEN, so the caller can emit a single
// circuit-open notification per trip.
func (b *Breaker) OnFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// Failed probe: reopen, cooldown restarts.
		b.state = StateOpen
		b.openedAt = b.clock()
		b.trial = false
		return true
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = b.clock()
			return true
		}
	}
	return false
}

// State returns the current position (for logs and metrics).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
