package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeflow/internal/pipeline"
	"tradeflow/internal/signal"
)

// paperTrade synthesizes an outcome as if every leg filled at the
// requested prices. No gateway call is made; the record is persisted
// so paper sessions can be reviewed like live ones.
func (e *Engine) paperTrade(ctx context.Context, sig *signal.Signal, symbol string) *pipeline.Outcome {
	qty := paperPositionSize
	if sig.PositionSize != nil {
		qty = *sig.PositionSize
	}
	tp1Qty := qty.Div(decimal.NewFromInt(2))
	tp2Qty := qty.Sub(tp1Qty)

	stamp := time.Now().UnixNano()
	out := &pipeline.Outcome{
		Success: true,
		Legs: []pipeline.Leg{
			{Role: pipeline.RoleEntry, OrderID: fmt.Sprintf("PAPER_%d", stamp), Status: pipeline.LegFilled, Price: sig.EntryPrice, Qty: qty},
			{Role: pipeline.RoleStopLoss, OrderID: fmt.Sprintf("PAPER_SL_%d", stamp), Status: pipeline.LegWorking, Price: sig.StopLoss, Qty: qty},
			{Role: pipeline.RoleTakeProfit1, OrderID: fmt.Sprintf("PAPER_TP1_%d", stamp), Status: pipeline.LegWorking, Price: sig.TakeProfit1, Qty: tp1Qty},
			{Role: pipeline.RoleTakeProfit2, OrderID: fmt.Sprintf("PAPER_TP2_%d", stamp), Status: pipeline.LegWorking, Price: sig.TakeProfit2, Qty: tp2Qty},
		},
	}

	out.PaperTradeID = e.recordTrade(ctx, sig, symbol, ModePaper, out, qty)
	e.log.Info("paper trade recorded",
		zap.String("symbol", symbol),
		zap.String("trade_id", out.PaperTradeID),
		zap.String("qty", qty.String()))
	return out
}
