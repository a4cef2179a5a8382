package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"tradeflow/internal/events"
)

// RetryPolicy bounds the retry loop for retryable failures. The
// policy itself is stateless and applied per call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of the computed delay randomized away,
	// e.g. 0.2 spreads each delay within +-20%.
	Jitter float64
}

// DefaultRetryPolicy mirrors the service's historical settings: three
// attempts, exponential 1s..10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) - spread + rand.Float64()*2*spread)
	}
	return d
}

// Guard wraps gateway operations with the retry policy, a per-call
// timeout, and the shared breaker. Timeouts count toward both the
// retry budget and the breaker failure counter.
type Guard struct {
	breaker *Breaker
	policy  RetryPolicy
	timeout time.Duration
	bus     *events.Bus
	log     *zap.Logger
}

// NewGuard builds a guard. timeout bounds each individual attempt.
func NewGuard(breaker *Breaker, policy RetryPolicy, timeout time.Duration, bus *events.Bus, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{breaker: breaker, policy: policy, timeout: timeout, bus: bus, log: log}
}

// Do runs fn under the guard. Retryable failures are retried with
// exponential backoff and jitter up to the attempt budget and then
// surface as *TransientError; terminal failures return immediately as
// *RejectedError; an open breaker returns ErrCircuitOpen without
// touching the gateway.
func (g *Guard) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		if err := g.breaker.Allow(); err != nil {
			g.log.Warn("fast-fail, breaker open", zap.String("op", op))
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			g.breaker.OnSuccess()
			return nil
		}

		if g.breaker.OnFailure() {
			g.log.Error("circuit breaker tripped OPEN", zap.String("op", op), zap.Error(err))
			g.bus.Publish(events.EventCircuitOpen, events.CircuitOpen{Op: op})
		}

		if Classify(err) == ClassTerminal {
			return &RejectedError{Op: op, Err: err}
		}

		lastErr = err
		g.log.Warn("retryable gateway failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("budget", g.policy.MaxAttempts),
			zap.Error(err))

		if attempt < g.policy.MaxAttempts {
			select {
			case <-time.After(g.policy.delay(attempt)):
			case <-ctx.Done():
				return &TransientError{Op: op, Attempts: attempt, Err: ctx.Err()}
			}
		}
	}
	return &TransientError{Op: op, Attempts: g.policy.MaxAttempts, Err: lastErr}
}

// Call runs a value-returning gateway operation under g.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, op, func(c context.Context) error {
		var innerErr error
		out, innerErr = fn(c)
		return innerErr
	})
	return out, err
}
