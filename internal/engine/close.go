package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeflow/internal/resilience"
	"tradeflow/pkg/db"
	"tradeflow/pkg/exchanges/common"
)

var hundred = decimal.NewFromInt(100)

// Close flattens percentage (0..100] of the open position on symbol
// with a market order, independent of the engine mode, going straight
// through the resilience layer. The realized PnL share estimated from
// the snapshot feeds the daily-loss accounting.
func (e *Engine) Close(ctx context.Context, symbol string, percentage decimal.Decimal) (common.OrderRef, error) {
	if !percentage.IsPositive() || percentage.GreaterThan(hundred) {
		return common.OrderRef{}, fmt.Errorf("close percentage %s out of range (0, 100]", percentage)
	}

	lk := e.symbolLock(symbol)
	lk.Lock()
	defer lk.Unlock()

	positions, err := resilience.Call(ctx, e.guard, "get_positions", func(c context.Context) ([]common.Position, error) {
		return e.gateway.Positions(c)
	})
	if err != nil {
		return common.OrderRef{}, err
	}

	var pos *common.Position
	for i := range positions {
		if positions[i].Symbol == symbol {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return common.OrderRef{}, fmt.Errorf("no open position for %s", symbol)
	}

	fraction := percentage.Div(hundred)
	qty := roundToStep(pos.Qty.Mul(fraction), e.riskConfig().QtyStep)
	if !qty.IsPositive() {
		return common.OrderRef{}, fmt.Errorf("close quantity for %s rounds to zero", symbol)
	}

	side := common.SideSell
	if pos.Side == common.PositionShort {
		side = common.SideBuy
	}

	ref, err := resilience.Call(ctx, e.guard, "close_position", func(c context.Context) (common.OrderRef, error) {
		return e.gateway.PlaceMarketOrder(c, symbol, side, qty)
	})
	if err != nil {
		return common.OrderRef{}, err
	}

	realized, _ := pos.UnrealizedPnL.Mul(fraction).Float64()
	e.recordClose(ctx, symbol, side, qty, realized)

	e.log.Info("position closed",
		zap.String("symbol", symbol),
		zap.String("pct", percentage.String()),
		zap.String("qty", qty.String()),
		zap.String("order_id", ref.OrderID))
	return ref, nil
}

func (e *Engine) recordClose(ctx context.Context, symbol string, side common.Side, qty decimal.Decimal, realized float64) {
	legs, _ := json.Marshal([]any{})
	rec := db.Trade{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Mode:        string(e.Mode()),
		Action:      "CLOSE_" + string(side),
		Qty:         qty.String(),
		EntryPrice:  "0",
		Success:     true,
		Legs:        string(legs),
		RealizedPnL: realized,
		CreatedAt:   time.Now(),
	}
	if err := e.store.SaveTrade(ctx, rec); err != nil {
		e.log.Error("persist close", zap.String("symbol", symbol), zap.Error(err))
	}
}

func roundToStep(qty, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}
