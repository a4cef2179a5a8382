package common

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway abstracts a derivatives venue. Every call is synchronous
// from the caller's view and carries the caller's deadline; callers
// are expected to wrap invocations with the resilience layer rather
// than retrying here.
type Gateway interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	Balance(ctx context.Context) (decimal.Decimal, error)
	Positions(ctx context.Context) ([]Position, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, qty decimal.Decimal) (OrderRef, error)
	PlaceStopOrder(ctx context.Context, symbol string, side Side, qty, stopPrice decimal.Decimal) (OrderRef, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side Side, qty, price decimal.Decimal) (OrderRef, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
