// Package risk validates signals against account limits and derives
// position sizing. Evaluate is a pure function over the snapshots it
// is handed; snapshot freshness is the caller's job (the engine takes
// them under the per-symbol lock).
package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeflow/internal/signal"
	"tradeflow/pkg/exchanges/common"
)

// atrMultiplier matches the stop-distance convention used for
// stop-loss placement (ATR x 1.5).
var atrMultiplier = decimal.NewFromFloat(1.5)

var hundred = decimal.NewFromInt(100)

// Limit identifies which configured limit blocked a signal.
type Limit string

const (
	LimitMaxPositions  Limit = "max_positions"
	LimitPositionValue Limit = "position_value"
	LimitDailyLoss     Limit = "daily_loss"
	LimitLeverage      Limit = "leverage"
)

// Error is a risk rejection. It is returned synchronously and never
// retried.
type Error struct {
	Limit  Limit
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("risk rejected (%s): %s", e.Limit, e.Reason)
}

// ErrInsufficientBalance signals the account cannot fund the required
// margin even at the approved leverage.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Snapshot bundles the account state an evaluation runs against.
type Snapshot struct {
	Equity           decimal.Decimal
	OpenPositions    []common.Position
	DailyRealizedPnL decimal.Decimal
}

// Decision is the approved sizing for a signal.
type Decision struct {
	Size     decimal.Decimal
	Notional decimal.Decimal
	Leverage int
}

// Evaluate validates sig against cfg and derives sizing. On rejection
// it returns a *Error (or ErrInsufficientBalance) and a zero Decision.
func Evaluate(sig *signal.Signal, snap Snapshot, cfg Config) (Decision, error) {
	if len(snap.OpenPositions) >= cfg.MaxPositions {
		return Decision{}, &Error{
			Limit:  LimitMaxPositions,
			Reason: fmt.Sprintf("maximum positions limit reached (%d)", cfg.MaxPositions),
		}
	}

	lossLimit := snap.Equity.Mul(cfg.DailyLossLimitPct).Div(hundred).Neg()
	if snap.DailyRealizedPnL.LessThanOrEqual(lossLimit) {
		return Decision{}, &Error{
			Limit:  LimitDailyLoss,
			Reason: fmt.Sprintf("daily loss %s breaches limit %s", snap.DailyRealizedPnL, lossLimit),
		}
	}

	maxNotional := snap.Equity.Mul(cfg.MaxPositionPct).Div(hundred)

	size, err := positionSize(sig, snap.Equity, maxNotional, cfg)
	if err != nil {
		return Decision{}, err
	}

	notional := size.Mul(sig.EntryPrice)
	if notional.GreaterThan(maxNotional) {
		return Decision{}, &Error{
			Limit:  LimitPositionValue,
			Reason: fmt.Sprintf("notional %s exceeds maximum position value %s", notional, maxNotional),
		}
	}

	leverage, err := deriveLeverage(notional, snap.Equity, cfg.MaxLeverage)
	if err != nil {
		return Decision{}, err
	}

	margin := notional.Div(decimal.NewFromInt(int64(leverage)))
	if margin.GreaterThan(snap.Equity) {
		return Decision{}, fmt.Errorf("margin %s exceeds equity %s: %w", margin, snap.Equity, ErrInsufficientBalance)
	}

	return Decision{Size: size, Notional: notional, Leverage: leverage}, nil
}

// positionSize resolves the trade quantity. An explicit signal size
// wins; otherwise the ATR formula applies when ATR is present, the
// stop-distance formula when not. Derived sizes are capped so notional
// stays inside the position-value limit, then floored to the quantity
// step.
func positionSize(sig *signal.Signal, equity, maxNotional decimal.Decimal, cfg Config) (decimal.Decimal, error) {
	if sig.PositionSize != nil {
		return roundToStep(*sig.PositionSize, cfg.QtyStep), nil
	}

	riskAmount := equity.Mul(cfg.RiskPerTradePct).Div(hundred)

	var denom decimal.Decimal
	if sig.ATR != nil {
		denom = sig.ATR.Mul(atrMultiplier)
	} else {
		denom = sig.EntryPrice.Sub(sig.StopLoss).Abs()
	}
	if denom.IsZero() {
		return decimal.Zero, &Error{
			Limit:  LimitPositionValue,
			Reason: "zero stop distance, cannot derive position size",
		}
	}

	size := riskAmount.Div(denom)

	// Cap so the derived notional never exceeds the position-value limit.
	maxQty := maxNotional.Div(sig.EntryPrice)
	if size.GreaterThan(maxQty) {
		size = maxQty
	}

	size = roundToStep(size, cfg.QtyStep)
	if size.IsZero() {
		return decimal.Zero, &Error{
			Limit:  LimitPositionValue,
			Reason: "derived size rounds below minimum quantity step",
		}
	}
	return size, nil
}

// deriveLeverage picks the smallest integer leverage covering the
// notional. Exceeding the configured maximum rejects the signal rather
// than silently raising leverage.
func deriveLeverage(notional, equity decimal.Decimal, maxLeverage int) (int, error) {
	if !equity.IsPositive() {
		return 0, fmt.Errorf("equity %s is not positive: %w", equity, ErrInsufficientBalance)
	}
	required := int(notional.Div(equity).Ceil().IntPart())
	if required < 1 {
		required = 1
	}
	if required > maxLeverage {
		return 0, &Error{
			Limit:  LimitLeverage,
			Reason: fmt.Sprintf("required leverage %dx exceeds maximum %dx", required, maxLeverage),
		}
	}
	return required, nil
}

func roundToStep(qty, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}
