package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"

	bapi "github.com/adshao/go-binance/v2/common"
)

// Class buckets a gateway failure for the retry policy.
type Class int

const (
	// ClassRetryable covers timeouts, rate limits, and transient
	// network faults.
	ClassRetryable Class = iota
	// ClassTerminal covers invalid parameters, exchange refusals, and
	// authentication failures.
	ClassTerminal
)

// Binance API codes considered transient. Kept as one closed list so
// the retry decision lives in exactly one place.
var retryableAPICodes = map[int64]bool{
	-1000: true, // UNKNOWN
	-1001: true, // DISCONNECTED
	-1003: true, // TOO_MANY_REQUESTS (also 429/418 responses)
	-1007: true, // TIMEOUT
	-1008: true, // SERVER_BUSY
	-1016: true, // SERVICE_SHUTTING_DOWN
}

// Classify maps a raw gateway error to its retry class. Unknown error
// shapes are terminal: retrying an unclassified order placement risks
// double execution.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}

	var apiErr *bapi.APIError
	if errors.As(err, &apiErr) {
		if retryableAPICodes[apiErr.Code] {
			return ClassRetryable
		}
		return ClassTerminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassRetryable
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return ClassRetryable
	}

	return ClassTerminal
}
