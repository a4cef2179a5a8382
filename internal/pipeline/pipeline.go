// Package pipeline executes the ordered multi-leg sequence for an
// approved signal: set leverage, market entry, stop-loss, then two
// take-profit tranches. Every placement funnels through the resilience
// guard; the pipeline itself holds no retry logic.
package pipeline

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeflow/internal/events"
	"tradeflow/internal/resilience"
	"tradeflow/internal/signal"
	"tradeflow/pkg/exchanges/common"
)

var two = decimal.NewFromInt(2)

// Sizing is the risk-approved quantity and leverage for one trade.
type Sizing struct {
	Qty      decimal.Decimal
	Leverage int
	QtyStep  decimal.Decimal
}

// Executor places the legs of a trade on the gateway. It must be
// invoked at most once per accepted signal; callers must not re-invoke
// on an outcome that is not a terminal entry failure.
type Executor struct {
	guard   *resilience.Guard
	gateway common.Gateway
	bus     *events.Bus
	log     *zap.Logger
}

// NewExecutor wires the pipeline to its gateway and guard.
func NewExecutor(gw common.Gateway, guard *resilience.Guard, bus *events.Bus, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{guard: guard, gateway: gw, bus: bus, log: log.With(zap.String("module", "pipeline"))}
}

// Execute runs the leg sequence. Cancellation via ctx is honored only
// until the entry order is issued; once the entry is acknowledged the
// remaining legs run detached from the caller's cancellation, since a
// filled market order cannot be undone by cancelling.
func (x *Executor) Execute(ctx context.Context, sig *signal.Signal, sz Sizing, symbol string) *Outcome {
	out := &Outcome{}

	entrySide := common.SideBuy
	if sig.Action == signal.ActionSell {
		entrySide = common.SideSell
	}
	exitSide := entrySide.Opposite()

	if err := x.guard.Do(ctx, "set_leverage", func(c context.Context) error {
		return x.gateway.SetLeverage(c, symbol, sz.Leverage)
	}); err != nil {
		out.Reason = "set leverage: " + err.Error()
		return out
	}

	if err := ctx.Err(); err != nil {
		out.Reason = "cancelled before entry: " + err.Error()
		return out
	}

	entryRef, err := resilience.Call(ctx, x.guard, "place_entry", func(c context.Context) (common.OrderRef, error) {
		return x.gateway.PlaceMarketOrder(c, symbol, entrySide, sz.Qty)
	})
	if err != nil {
		// No position was opened; abort with no compensation needed.
		out.Legs = append(out.Legs, x.failedLeg(symbol, RoleEntry, sig.EntryPrice, sz.Qty, err))
		out.Reason = "entry failed: " + err.Error()
		return out
	}
	out.Legs = append(out.Legs, x.filledLeg(symbol, RoleEntry, entryRef, sig.EntryPrice, sz.Qty, LegFilled))

	// Entry is filled: downstream legs proceed or degrade regardless of
	// caller cancellation.
	post := context.WithoutCancel(ctx)

	slRef, err := resilience.Call(post, x.guard, "place_stop_loss", func(c context.Context) (common.OrderRef, error) {
		return x.gateway.PlaceStopOrder(c, symbol, exitSide, sz.Qty, sig.StopLoss)
	})
	if err != nil {
		// Open position, no protection. Policy: do not close it
		// automatically; report a degraded success and flag it loudly.
		out.Legs = append(out.Legs,
			x.failedLeg(symbol, RoleStopLoss, sig.StopLoss, sz.Qty, err),
			Leg{Role: RoleTakeProfit1, Status: LegSkipped, Price: sig.TakeProfit1},
			Leg{Role: RoleTakeProfit2, Status: LegSkipped, Price: sig.TakeProfit2},
		)
		out.Success = true
		out.Unprotected = true
		out.Partial = &PartialExecutionError{FailedLegs: []LegRole{RoleStopLoss}}
		out.Reason = "stop-loss placement failed, position unprotected"
		x.log.Error("position open without stop-loss",
			zap.String("symbol", symbol), zap.Error(err))
		x.publishDegraded(symbol, out)
		return out
	}
	out.Legs = append(out.Legs, x.filledLeg(symbol, RoleStopLoss, slRef, sig.StopLoss, sz.Qty, LegWorking))

	tp1Qty := roundToStep(sz.Qty.Div(two), sz.QtyStep)
	tp2Qty := sz.Qty.Sub(tp1Qty)

	var failed []LegRole
	for _, tp := range []struct {
		role  LegRole
		qty   decimal.Decimal
		price decimal.Decimal
	}{
		{RoleTakeProfit1, tp1Qty, sig.TakeProfit1},
		{RoleTakeProfit2, tp2Qty, sig.TakeProfit2},
	} {
		ref, err := resilience.Call(post, x.guard, "place_take_profit", func(c context.Context) (common.OrderRef, error) {
			return x.gateway.PlaceLimitOrder(c, symbol, exitSide, tp.qty, tp.price)
		})
		if err != nil {
			// Entry and stop-loss remain valid; the missing tranche is
			// reported but does not invalidate the trade.
			out.Legs = append(out.Legs, x.failedLeg(symbol, tp.role, tp.price, tp.qty, err))
			failed = append(failed, tp.role)
			continue
		}
		out.Legs = append(out.Legs, x.filledLeg(symbol, tp.role, ref, tp.price, tp.qty, LegWorking))
	}

	out.Success = true
	if len(failed) > 0 {
		out.Partial = &PartialExecutionError{FailedLegs: failed}
		out.Reason = out.Partial.Error()
		x.publishDegraded(symbol, out)
	}
	return out
}

func (x *Executor) filledLeg(symbol string, role LegRole, ref common.OrderRef, price, qty decimal.Decimal, status LegStatus) Leg {
	leg := Leg{Role: role, OrderID: ref.OrderID, Status: status, Price: price, Qty: qty}
	x.bus.Publish(events.EventLegFilled, events.LegUpdate{
		Symbol: symbol, Role: string(role), OrderID: ref.OrderID, Status: string(status),
	})
	x.log.Info("leg placed",
		zap.String("symbol", symbol),
		zap.String("role", string(role)),
		zap.String("order_id", ref.OrderID),
		zap.String("qty", qty.String()))
	return leg
}

func (x *Executor) failedLeg(symbol string, role LegRole, price, qty decimal.Decimal, err error) Leg {
	x.bus.Publish(events.EventLegFailed, events.LegUpdate{
		Symbol: symbol, Role: string(role), Status: string(LegFailed), Err: err.Error(),
	})
	return Leg{Role: role, Status: LegFailed, Price: price, Qty: qty, Err: err.Error()}
}

func (x *Executor) publishDegraded(symbol string, out *Outcome) {
	names := make([]string, len(out.Partial.FailedLegs))
	for i, r := range out.Partial.FailedLegs {
		names[i] = string(r)
	}
	x.bus.Publish(events.EventPipelineDegraded, events.PipelineDegraded{
		Symbol: symbol, Unprotected: out.Unprotected, FailedLegs: names,
	})
}

func roundToStep(qty, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}
