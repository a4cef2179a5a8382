package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LegRole identifies an order within the multi-leg trade.
type LegRole string

const (
	RoleEntry       LegRole = "ENTRY"
	RoleStopLoss    LegRole = "STOP_LOSS"
	RoleTakeProfit1 LegRole = "TAKE_PROFIT_1"
	RoleTakeProfit2 LegRole = "TAKE_PROFIT_2"
)

// LegStatus is the terminal state of a leg within one execution.
type LegStatus string

const (
	LegFilled  LegStatus = "FILLED"
	LegWorking LegStatus = "WORKING"
	LegFailed  LegStatus = "FAILED"
	LegSkipped LegStatus = "SKIPPED"
)

// Leg records one placed (or attempted) order of a trade.
type Leg struct {
	Role    LegRole         `json:"role"`
	OrderID string          `json:"order_id,omitempty"`
	Status  LegStatus       `json:"status"`
	Price   decimal.Decimal `json:"price"`
	Qty     decimal.Decimal `json:"qty"`
	Err     string          `json:"err,omitempty"`
}

// PartialExecutionError reports non-entry legs that failed after the
// entry filled. It is attached to the outcome, never returned: a trade
// holding a filled entry is not aborted retroactively.
type PartialExecutionError struct {
	FailedLegs []LegRole
}

func (e *PartialExecutionError) Error() string {
	names := make([]string, len(e.FailedLegs))
	for i, r := range e.FailedLegs {
		names[i] = string(r)
	}
	return fmt.Sprintf("partial execution: legs failed after entry fill: %s", strings.Join(names, ", "))
}

// Outcome is the single result record of processing a signal.
type Outcome struct {
	Success bool   `json:"success"`
	Legs    []Leg  `json:"legs,omitempty"`
	Reason  string `json:"reason,omitempty"`
	// Unprotected marks a degraded success whose stop-loss leg could
	// not be placed: the open position has no protective order.
	Unprotected bool                   `json:"unprotected,omitempty"`
	Partial     *PartialExecutionError `json:"-"`

	// Mode-specific correlation ids.
	PaperTradeID    string `json:"paper_trade_id,omitempty"`
	PendingSignalID string `json:"pending_signal_id,omitempty"`
}

// Degraded reports whether the trade succeeded with missing legs.
func (o *Outcome) Degraded() bool {
	return o.Success && o.Partial != nil
}
