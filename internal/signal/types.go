// Package signal defines the strategy signal consumed by the trading
// engine. A Signal is immutable once accepted: every derived value
// (sizing, leverage, leg statuses) lives on the trade outcome, never
// here.
package signal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Action is the signal direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Signal is a fully-formed strategy signal. Optional fields are
// pointers; nil means the producer left the choice to the engine.
type Signal struct {
	Action       Action           `json:"action"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	StopLoss     decimal.Decimal  `json:"stop_loss"`
	TakeProfit1  decimal.Decimal  `json:"take_profit_1"`
	TakeProfit2  decimal.Decimal  `json:"take_profit_2"`
	PositionSize *decimal.Decimal `json:"position_size,omitempty"`
	Confidence   float64          `json:"confidence"`
	Reason       string           `json:"reason,omitempty"`
	ATR          *decimal.Decimal `json:"atr,omitempty"`
	CandleLow    *decimal.Decimal `json:"candle_low,omitempty"`
	CandleHigh   *decimal.Decimal `json:"candle_high,omitempty"`
}

// ValidationError reports a malformed signal. It is returned before
// any risk evaluation or exchange contact.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid signal: %s %s", e.Field, e.Msg)
}

// Validate checks the signal shape. Price ordering is checked against
// the action: a BUY stop must sit below entry with targets above, a
// SELL the inverse.
func (s *Signal) Validate() error {
	if s.Action != ActionBuy && s.Action != ActionSell {
		return &ValidationError{Field: "action", Msg: fmt.Sprintf("must be BUY or SELL, got %q", s.Action)}
	}
	for _, p := range []struct {
		name string
		val  decimal.Decimal
	}{
		{"entry_price", s.EntryPrice},
		{"stop_loss", s.StopLoss},
		{"take_profit_1", s.TakeProfit1},
		{"take_profit_2", s.TakeProfit2},
	} {
		if !p.val.IsPositive() {
			return &ValidationError{Field: p.name, Msg: "must be positive"}
		}
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return &ValidationError{Field: "confidence", Msg: "must be within [0, 1]"}
	}
	if s.PositionSize != nil && !s.PositionSize.IsPositive() {
		return &ValidationError{Field: "position_size", Msg: "must be positive when set"}
	}
	if s.ATR != nil && !s.ATR.IsPositive() {
		return &ValidationError{Field: "atr", Msg: "must be positive when set"}
	}

	switch s.Action {
	case ActionBuy:
		if s.StopLoss.GreaterThanOrEqual(s.EntryPrice) {
			return &ValidationError{Field: "stop_loss", Msg: "must be below entry for BUY"}
		}
		if s.TakeProfit1.LessThanOrEqual(s.EntryPrice) || s.TakeProfit2.LessThanOrEqual(s.EntryPrice) {
			return &ValidationError{Field: "take_profit", Msg: "must be above entry for BUY"}
		}
	case ActionSell:
		if s.StopLoss.LessThanOrEqual(s.EntryPrice) {
			return &ValidationError{Field: "stop_loss", Msg: "must be above entry for SELL"}
		}
		if s.TakeProfit1.GreaterThanOrEqual(s.EntryPrice) || s.TakeProfit2.GreaterThanOrEqual(s.EntryPrice) {
			return &ValidationError{Field: "take_profit", Msg: "must be below entry for SELL"}
		}
	}
	return nil
}
