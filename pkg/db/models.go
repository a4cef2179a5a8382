package db

import "time"

// Trade is one persisted trade outcome (any mode). Money values are
// stored as their decimal string form; Legs is the JSON-encoded leg
// list from the pipeline outcome.
type Trade struct {
	ID          string
	Symbol      string
	Mode        string
	Action      string
	Qty         string
	EntryPrice  string
	Success     bool
	Unprotected bool
	Reason      string
	Legs        string
	RealizedPnL float64
	CreatedAt   time.Time
}

// PendingSignal is the durable form of a signal awaiting confirmation.
// Payload is the JSON-encoded signal.
type PendingSignal struct {
	ID         string
	Symbol     string
	Payload    string
	Status     string
	TTLSeconds int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
