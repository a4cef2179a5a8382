// Package notify forwards engine events to alert sinks. Delivery is
// best-effort and fire-and-forget: a sink failure is logged and never
// propagates back into the pipeline.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tradeflow/internal/events"
)

// Sink delivers one alert message.
type Sink interface {
	Send(ctx context.Context, message string) error
}

// Notifier subscribes to the engine's event topics and fans messages
// out to its sinks.
type Notifier struct {
	bus   *events.Bus
	sinks []Sink
	log   *zap.Logger
}

// New builds a notifier over the given sinks.
func New(bus *events.Bus, log *zap.Logger, sinks ...Sink) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{bus: bus, sinks: sinks, log: log.With(zap.String("module", "notify"))}
}

var topics = []events.Event{
	events.EventSignalAccepted,
	events.EventLegFilled,
	events.EventLegFailed,
	events.EventPipelineDegraded,
	events.EventRiskRejected,
	events.EventCircuitOpen,
	events.EventPendingCreated,
	events.EventPendingExpired,
}

// Start consumes events until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	for _, topic := range topics {
		ch, unsub := n.bus.Subscribe(topic, 64)
		go func(topic events.Event, ch <-chan any, unsub func()) {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					n.deliver(ctx, format(topic, payload))
				}
			}
		}(topic, ch, unsub)
	}
}

func (n *Notifier) deliver(ctx context.Context, msg string) {
	if msg == "" {
		return
	}
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			n.log.Warn("alert delivery failed", zap.Error(err))
		}
	}
}

func format(topic events.Event, payload any) string {
	switch p := payload.(type) {
	case events.SignalAccepted:
		return fmt.Sprintf("📈 Signal %s %s @ %s (%s mode)", p.Action, p.Symbol, p.EntryPrice, p.Mode)
	case events.LegUpdate:
		if topic == events.EventLegFailed {
			return fmt.Sprintf("❌ %s %s leg failed: %s", p.Symbol, p.Role, p.Err)
		}
		return fmt.Sprintf("✅ %s %s placed (order %s, %s)", p.Symbol, p.Role, p.OrderID, p.Status)
	case events.PipelineDegraded:
		if p.Unprotected {
			return fmt.Sprintf("🚨 %s POSITION UNPROTECTED: stop-loss missing (failed legs: %s)", p.Symbol, strings.Join(p.FailedLegs, ", "))
		}
		return fmt.Sprintf("⚠️ %s trade degraded, failed legs: %s", p.Symbol, strings.Join(p.FailedLegs, ", "))
	case events.RiskRejected:
		return fmt.Sprintf("🛑 %s rejected by risk (%s): %s", p.Symbol, p.Limit, p.Reason)
	case events.CircuitOpen:
		return fmt.Sprintf("🔌 Circuit breaker OPEN after %s failures — exchange presumed unhealthy", p.Op)
	case events.PendingUpdate:
		switch topic {
		case events.EventPendingCreated:
			return fmt.Sprintf("⏳ %s signal %s awaiting confirmation", p.Symbol, p.ID)
		case events.EventPendingExpired:
			return fmt.Sprintf("⌛ %s signal %s expired unconfirmed", p.Symbol, p.ID)
		}
	}
	return ""
}
