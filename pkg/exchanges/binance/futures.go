// Package binance adapts the Binance USDT-futures REST API to the
// common.Gateway interface. It performs no retries of its own; the
// resilience layer owns that policy. A token-bucket limiter throttles
// outbound requests below the venue's weight limits.
package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"tradeflow/pkg/exchanges/common"
)

const quoteAsset = "USDT"

// Futures is a common.Gateway over Binance USDT-margined futures.
type Futures struct {
	client  *futures.Client
	limiter *rate.Limiter
}

// New creates the adapter. rps bounds outbound request rate.
func New(apiKey, apiSecret string, testnet bool, rps rate.Limit) *Futures {
	futures.UseTestnet = testnet
	return &Futures{
		client:  futures.NewClient(apiKey, apiSecret),
		limiter: rate.NewLimiter(rps, 1),
	}
}

// SetLeverage sets the initial leverage for a symbol.
func (f *Futures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := f.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	return err
}

// Balance returns the available USDT balance.
func (f *Futures) Balance(ctx context.Context) (decimal.Decimal, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	balances, err := f.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if b.Asset == quoteAsset {
			return decimal.NewFromString(b.AvailableBalance)
		}
	}
	return decimal.Zero, fmt.Errorf("no %s balance in account", quoteAsset)
}

// Positions returns all non-flat positions.
func (f *Futures) Positions(ctx context.Context) ([]common.Position, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	risks, err := f.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, err
	}

	var out []common.Position
	for _, r := range risks {
		amt, err := decimal.NewFromString(r.PositionAmt)
		if err != nil || amt.IsZero() {
			continue
		}
		entry, err := decimal.NewFromString(r.EntryPrice)
		if err != nil {
			return nil, fmt.Errorf("parse entry price for %s: %w", r.Symbol, err)
		}
		pnl, err := decimal.NewFromString(r.UnRealizedProfit)
		if err != nil {
			return nil, fmt.Errorf("parse unrealized pnl for %s: %w", r.Symbol, err)
		}
		side := common.PositionLong
		if amt.IsNegative() {
			side = common.PositionShort
		}
		out = append(out, common.Position{
			Symbol:        r.Symbol,
			Side:          side,
			Qty:           amt.Abs(),
			EntryPrice:    entry,
			UnrealizedPnL: pnl,
		})
	}
	return out, nil
}

// PlaceMarketOrder submits a market order.
func (f *Futures) PlaceMarketOrder(ctx context.Context, symbol string, side common.Side, qty decimal.Decimal) (common.OrderRef, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return common.OrderRef{}, err
	}
	res, err := f.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return common.OrderRef{}, err
	}
	return orderRef(res), nil
}

// PlaceStopOrder submits a reduce-only stop-market order (stop-loss).
func (f *Futures) PlaceStopOrder(ctx context.Context, symbol string, side common.Side, qty, stopPrice decimal.Decimal) (common.OrderRef, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return common.OrderRef{}, err
	}
	res, err := f.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(futures.OrderTypeStopMarket).
		Quantity(qty.String()).
		StopPrice(stopPrice.String()).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return common.OrderRef{}, err
	}
	return orderRef(res), nil
}

// PlaceLimitOrder submits a reduce-only GTC limit order (take-profit
// tranches).
func (f *Futures) PlaceLimitOrder(ctx context.Context, symbol string, side common.Side, qty, price decimal.Decimal) (common.OrderRef, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return common.OrderRef{}, err
	}
	res, err := f.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(qty.String()).
		Price(price.String()).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return common.OrderRef{}, err
	}
	return orderRef(res), nil
}

// CancelOrder cancels a working order by exchange id.
func (f *Futures) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("order id %q is not numeric: %w", orderID, err)
	}
	_, err = f.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	return err
}

func sideType(s common.Side) futures.SideType {
	if s == common.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func orderRef(res *futures.CreateOrderResponse) common.OrderRef {
	ref := common.OrderRef{
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		ClientID: res.ClientOrderID,
	}
	switch res.Status {
	case futures.OrderStatusTypeFilled:
		ref.Status = common.StatusFilled
	case futures.OrderStatusTypeRejected, futures.OrderStatusTypeExpired:
		ref.Status = common.StatusRejected
	default:
		ref.Status = common.StatusWorking
	}
	return ref
}
