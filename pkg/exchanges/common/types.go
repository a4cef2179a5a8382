package common

import "github.com/shopspring/decimal"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for an entry side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide denotes the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// OrderStatus normalizes exchange acks into a small set.
type OrderStatus string

const (
	StatusFilled   OrderStatus = "FILLED"
	StatusWorking  OrderStatus = "WORKING"
	StatusRejected OrderStatus = "REJECTED"
)

// OrderRef is the exchange acknowledgment for a placed order.
type OrderRef struct {
	OrderID  string
	ClientID string
	Status   OrderStatus
}

// Position is a read-only snapshot of an open position. The engine
// never mutates it; it is refreshed from the venue per decision.
type Position struct {
	Symbol        string
	Side          PositionSide
	Qty           decimal.Decimal
	EntryPrice    decimal.Decimal
	UnrealizedPnL decimal.Decimal
}
