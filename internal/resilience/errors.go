// Package resilience guards every exchange gateway call with a retry
// policy and a shared circuit breaker.
package resilience

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned fast, without contacting the gateway,
// while the breaker presumes the venue unhealthy.
var ErrCircuitOpen = errors.New("circuit open: gateway presumed unhealthy")

// TransientError surfaces once a retryable failure has exhausted the
// retry budget. Err is the last attempt's failure.
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError is a terminal, exchange-side refusal (bad parameters,
// auth failure). It propagates immediately, never retried.
type RejectedError struct {
	Op  string
	Err error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: rejected by exchange: %v", e.Op, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }
