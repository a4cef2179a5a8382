// Package engine is the trading façade: it routes an incoming signal
// through paper, semi-auto, or auto handling, owns the per-symbol
// execution serialization, and is the only component that talks to
// every collaborator.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeflow/internal/events"
	"tradeflow/internal/pending"
	"tradeflow/internal/pipeline"
	"tradeflow/internal/resilience"
	"tradeflow/internal/risk"
	"tradeflow/internal/signal"
	"tradeflow/pkg/db"
	"tradeflow/pkg/exchanges/common"
)

// Mode selects how incoming signals are handled.
type Mode string

const (
	ModePaper    Mode = "paper"
	ModeSemiAuto Mode = "semi-auto"
	ModeAuto     Mode = "auto"
)

// paperPositionSize is the fallback quantity for paper trades without
// an explicit size.
var paperPositionSize = decimal.NewFromFloat(0.1)

// Store is the persistence surface the engine consumes.
type Store interface {
	SaveTrade(ctx context.Context, t db.Trade) error
	DailyRealizedPnL(ctx context.Context, since time.Time) (float64, error)
}

// Engine processes signals under explicit risk limits.
type Engine struct {
	gateway common.Gateway
	guard   *resilience.Guard
	exec    *pipeline.Executor
	pending *pending.Store
	store   Store
	bus     *events.Bus
	log     *zap.Logger

	mu      sync.RWMutex // guards mode and riskCfg
	mode    Mode
	riskCfg risk.Config

	pendingTTL time.Duration
	locks      sync.Map // symbol -> *sync.Mutex
}

// New wires the engine. The risk config may later be replaced
// wholesale via SetRiskConfig but is never partially mutated.
func New(gw common.Gateway, guard *resilience.Guard, exec *pipeline.Executor, pend *pending.Store, store Store, bus *events.Bus, log *zap.Logger, mode Mode, cfg risk.Config, pendingTTL time.Duration) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		gateway:    gw,
		guard:      guard,
		exec:       exec,
		pending:    pend,
		store:      store,
		bus:        bus,
		log:        log.With(zap.String("module", "engine")),
		mode:       mode,
		riskCfg:    cfg,
		pendingTTL: pendingTTL,
	}
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetMode switches the mode for signals processed after the call.
// Signals already queued as PENDING keep the behavior they were
// queued under.
func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	e.mode = m
	e.mu.Unlock()
	e.log.Info("trading mode changed", zap.String("mode", string(m)))
}

// SetRiskConfig replaces the risk limits wholesale.
func (e *Engine) SetRiskConfig(cfg risk.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.riskCfg = cfg
	e.mu.Unlock()
	return nil
}

func (e *Engine) riskConfig() risk.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.riskCfg
}

// symbolLock returns the exclusive lock serializing executions per
// symbol. It is acquired before risk evaluation and released only
// after the pipeline (or pending-signal creation) completes, so two
// concurrent signals can never pass risk checks against the same stale
// position snapshot.
func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	lk, _ := e.locks.LoadOrStore(symbol, &sync.Mutex{})
	return lk.(*sync.Mutex)
}

// Process is the single entry point for a validated-shape signal. It
// always returns a definite outcome: success, degraded success, or a
// failure with a reason. The mode is read once at the start; a
// concurrent mode change never affects an already-dispatched signal.
func (e *Engine) Process(ctx context.Context, sig *signal.Signal, symbol string) (*pipeline.Outcome, error) {
	mode := e.Mode()

	if err := sig.Validate(); err != nil {
		return &pipeline.Outcome{Reason: err.Error()}, err
	}

	lk := e.symbolLock(symbol)
	lk.Lock()
	defer lk.Unlock()

	e.bus.Publish(events.EventSignalAccepted, events.SignalAccepted{
		Symbol:     symbol,
		Action:     string(sig.Action),
		EntryPrice: sig.EntryPrice.String(),
		Mode:       string(mode),
	})
	e.log.Info("processing signal",
		zap.String("symbol", symbol),
		zap.String("action", string(sig.Action)),
		zap.String("entry", sig.EntryPrice.String()),
		zap.String("mode", string(mode)),
		zap.Float64("confidence", sig.Confidence))

	switch mode {
	case ModePaper:
		return e.paperTrade(ctx, sig, symbol), nil
	case ModeSemiAuto:
		return e.queueForConfirmation(ctx, sig, symbol)
	default:
		return e.liveTrade(ctx, sig, symbol, mode)
	}
}

// liveTrade runs snapshot -> risk -> pipeline inline. Also the confirm
// path, which reuses it under the symbol lock.
func (e *Engine) liveTrade(ctx context.Context, sig *signal.Signal, symbol string, mode Mode) (*pipeline.Outcome, error) {
	cfg := e.riskConfig()

	dec, err := e.evaluate(ctx, sig, symbol, cfg)
	if err != nil {
		out := &pipeline.Outcome{Reason: err.Error()}
		e.recordTrade(ctx, sig, symbol, mode, out, decimal.Zero)
		return out, err
	}

	out := e.exec.Execute(ctx, sig, pipeline.Sizing{
		Qty:      dec.Size,
		Leverage: dec.Leverage,
		QtyStep:  cfg.QtyStep,
	}, symbol)

	e.recordTrade(ctx, sig, symbol, mode, out, dec.Size)
	return out, nil
}

// evaluate refreshes account snapshots through the resilience layer
// and runs the pure risk check.
func (e *Engine) evaluate(ctx context.Context, sig *signal.Signal, symbol string, cfg risk.Config) (risk.Decision, error) {
	equity, err := resilience.Call(ctx, e.guard, "get_balance", func(c context.Context) (decimal.Decimal, error) {
		return e.gateway.Balance(c)
	})
	if err != nil {
		return risk.Decision{}, err
	}

	positions, err := resilience.Call(ctx, e.guard, "get_positions", func(c context.Context) ([]common.Position, error) {
		return e.gateway.Positions(c)
	})
	if err != nil {
		return risk.Decision{}, err
	}

	dailyPnL, err := e.store.DailyRealizedPnL(ctx, utcMidnight(time.Now()))
	if err != nil {
		return risk.Decision{}, err
	}

	dec, err := risk.Evaluate(sig, risk.Snapshot{
		Equity:           equity,
		OpenPositions:    positions,
		DailyRealizedPnL: decimal.NewFromFloat(dailyPnL),
	}, cfg)
	if err != nil {
		var rejected *risk.Error
		if errors.As(err, &rejected) {
			e.bus.Publish(events.EventRiskRejected, events.RiskRejected{
				Symbol: symbol,
				Limit:  string(rejected.Limit),
				Reason: rejected.Reason,
			})
			e.log.Warn("risk rejected",
				zap.String("symbol", symbol),
				zap.String("limit", string(rejected.Limit)),
				zap.String("reason", rejected.Reason))
		}
		return risk.Decision{}, err
	}
	return dec, nil
}

// queueForConfirmation stores a risk-approved signal as PENDING. A
// pre-rejected signal is never queued.
func (e *Engine) queueForConfirmation(ctx context.Context, sig *signal.Signal, symbol string) (*pipeline.Outcome, error) {
	cfg := e.riskConfig()
	if _, err := e.evaluate(ctx, sig, symbol, cfg); err != nil {
		return &pipeline.Outcome{Reason: err.Error()}, err
	}

	ps, err := e.pending.Create(ctx, symbol, *sig, e.pendingTTL)
	if err != nil {
		return &pipeline.Outcome{Reason: err.Error()}, err
	}
	return &pipeline.Outcome{
		Success:         true,
		PendingSignalID: ps.ID,
		Reason:          "signal queued for user confirmation",
	}, nil
}

// Confirm executes a PENDING signal exactly as auto mode would. The
// signal transitions to CONFIRMED regardless of the execution outcome;
// the outcome is attached to it.
func (e *Engine) Confirm(ctx context.Context, id string) (*pipeline.Outcome, error) {
	return e.pending.Confirm(ctx, id, func(c context.Context, sig *signal.Signal, symbol string) *pipeline.Outcome {
		lk := e.symbolLock(symbol)
		lk.Lock()
		defer lk.Unlock()

		out, _ := e.liveTrade(c, sig, symbol, ModeSemiAuto)
		return out
	})
}

// Reject discards a PENDING signal without touching the pipeline.
func (e *Engine) Reject(ctx context.Context, id string) error {
	return e.pending.Reject(ctx, id)
}

// Pending lists queued signals by status.
func (e *Engine) Pending(status pending.Status) []pending.Signal {
	return e.pending.List(status)
}

func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// recordTrade persists the outcome record; persistence failures are
// logged, never propagated into the trade result.
func (e *Engine) recordTrade(ctx context.Context, sig *signal.Signal, symbol string, mode Mode, out *pipeline.Outcome, qty decimal.Decimal) string {
	id := uuid.NewString()
	legs, err := json.Marshal(out.Legs)
	if err != nil {
		legs = []byte("[]")
	}
	rec := db.Trade{
		ID:          id,
		Symbol:      symbol,
		Mode:        string(mode),
		Action:      string(sig.Action),
		Qty:         qty.String(),
		EntryPrice:  sig.EntryPrice.String(),
		Success:     out.Success,
		Unprotected: out.Unprotected,
		Reason:      out.Reason,
		Legs:        string(legs),
		CreatedAt:   time.Now(),
	}
	if err := e.store.SaveTrade(ctx, rec); err != nil {
		e.log.Error("persist trade", zap.String("symbol", symbol), zap.Error(err))
	}
	return id
}
