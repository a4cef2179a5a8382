package events

// Event enumerates the notification topics the engine emits.
type Event string

const (
	EventSignalAccepted   Event = "signal.accepted"
	EventLegFilled        Event = "leg.filled"
	EventLegFailed        Event = "leg.failed"
	EventPipelineDegraded Event = "pipeline.degraded"
	EventRiskRejected     Event = "risk.rejected"
	EventCircuitOpen      Event = "circuit.open"
	EventPendingCreated   Event = "pending.created"
	EventPendingConfirmed Event = "pending.confirmed"
	EventPendingRejected  Event = "pending.rejected"
	EventPendingExpired   Event = "pending.expired"
)

// SignalAccepted is published once per Process call that passes shape
// validation, before any risk evaluation.
type SignalAccepted struct {
	Symbol     string
	Action     string
	EntryPrice string
	Mode       string
}

// LegUpdate is published per pipeline leg, for both fills and failures.
type LegUpdate struct {
	Symbol  string
	Role    string
	OrderID string
	Status  string
	Err     string
}

// PipelineDegraded is published when a non-entry leg failed after the
// entry filled. Unprotected means the stop-loss leg is missing.
type PipelineDegraded struct {
	Symbol      string
	Unprotected bool
	FailedLegs  []string
}

// RiskRejected carries which limit blocked the signal.
type RiskRejected struct {
	Symbol string
	Limit  string
	Reason string
}

// CircuitOpen is published when the breaker trips to OPEN.
type CircuitOpen struct {
	Op string
}

// PendingUpdate tracks pending-signal lifecycle transitions.
type PendingUpdate struct {
	ID     string
	Symbol string
	Status string
}
