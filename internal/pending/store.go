// Package pending holds signals awaiting human confirmation. Each
// signal is a one-way state machine: PENDING is the only non-terminal
// state, and CONFIRMED, REJECTED, and EXPIRED are terminal. Records
// are never deleted in place before reaching a terminal state.
package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradeflow/internal/events"
	"tradeflow/internal/pipeline"
	"tradeflow/internal/signal"
	"tradeflow/pkg/db"
)

// Status is a pending signal's lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
)

// StateConflictError reports an invalid transition, e.g. a second
// confirm on the same id. Race losers see it instead of a silent no-op.
type StateConflictError struct {
	ID   string
	From Status
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("pending signal %s: cannot transition from %s", e.ID, e.From)
}

// ErrNotFound re-exports the persistence sentinel for callers.
var ErrNotFound = db.ErrNotFound

// Signal is an in-memory pending signal.
type Signal struct {
	ID        string
	Symbol    string
	Signal    signal.Signal
	Status    Status
	CreatedAt time.Time
	TTL       time.Duration // zero means no expiry
	Outcome   *pipeline.Outcome
}

// Persistence is the durable backing for pending signals; pkg/db
// satisfies it.
type Persistence interface {
	SavePendingSignal(ctx context.Context, p db.PendingSignal) error
	UpdatePendingSignalStatus(ctx context.Context, id, status string) error
}

type entry struct {
	mu sync.Mutex // serializes confirm/reject/expire per id
	ps *Signal
}

// Store keeps pending signals and enforces their transitions.
// Confirm/reject are serialized per signal id, independent of the
// engine's symbol locks.
type Store struct {
	mu      sync.RWMutex
	items   map[string]*entry
	persist Persistence
	bus     *events.Bus
	log     *zap.Logger
	clock   func() time.Time
}

// NewStore builds a store. persist may be nil in tests.
func NewStore(persist Persistence, bus *events.Bus, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		items:   make(map[string]*entry),
		persist: persist,
		bus:     bus,
		log:     log.With(zap.String("module", "pending")),
		clock:   time.Now,
	}
}

// Create queues a risk-approved signal for confirmation.
func (s *Store) Create(ctx context.Context, symbol string, sig signal.Signal, ttl time.Duration) (*Signal, error) {
	ps := &Signal{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Signal:    sig,
		Status:    StatusPending,
		CreatedAt: s.clock(),
		TTL:       ttl,
	}

	if s.persist != nil {
		payload, err := json.Marshal(sig)
		if err != nil {
			return nil, fmt.Errorf("encode signal: %w", err)
		}
		rec := db.PendingSignal{
			ID:         ps.ID,
			Symbol:     symbol,
			Payload:    string(payload),
			Status:     string(StatusPending),
			TTLSeconds: int64(ttl / time.Second),
			CreatedAt:  ps.CreatedAt,
			UpdatedAt:  ps.CreatedAt,
		}
		if err := s.persist.SavePendingSignal(ctx, rec); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.items[ps.ID] = &entry{ps: ps}
	s.mu.Unlock()

	s.bus.Publish(events.EventPendingCreated, events.PendingUpdate{ID: ps.ID, Symbol: symbol, Status: string(StatusPending)})
	s.log.Info("signal queued for confirmation", zap.String("id", ps.ID), zap.String("symbol", symbol))
	return ps, nil
}

// Confirm transitions PENDING -> CONFIRMED, invoking exec (the auto
// trade path) while still holding the per-id lock. The transition
// happens regardless of the execution outcome; the outcome is attached
// to the record, not re-derived later.
func (s *Store) Confirm(ctx context.Context, id string, exec func(ctx context.Context, sig *signal.Signal, symbol string) *pipeline.Outcome) (*pipeline.Outcome, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ps.Status != StatusPending {
		return nil, &StateConflictError{ID: id, From: e.ps.Status}
	}
	if s.expired(e.ps) {
		s.transition(ctx, e.ps, StatusExpired)
		return nil, &StateConflictError{ID: id, From: StatusExpired}
	}

	out := exec(ctx, &e.ps.Signal, e.ps.Symbol)
	e.ps.Outcome = out
	out.PendingSignalID = id
	s.transition(ctx, e.ps, StatusConfirmed)
	return out, nil
}

// Reject transitions PENDING -> REJECTED without touching the
// pipeline.
func (s *Store) Reject(ctx context.Context, id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ps.Status != StatusPending {
		return &StateConflictError{ID: id, From: e.ps.Status}
	}
	if s.expired(e.ps) {
		s.transition(ctx, e.ps, StatusExpired)
		return &StateConflictError{ID: id, From: StatusExpired}
	}
	s.transition(ctx, e.ps, StatusRejected)
	return nil
}

// Get returns a snapshot copy of the pending signal.
func (s *Store) Get(id string) (Signal, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Signal{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.ps, nil
}

// List returns signals in the given status (all when empty), newest
// first not guaranteed.
func (s *Store) List(status Status) []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Signal
	for _, e := range s.items {
		e.mu.Lock()
		if status == "" || e.ps.Status == status {
			out = append(out, *e.ps)
		}
		e.mu.Unlock()
	}
	return out
}

// Sweep expires PENDING signals whose TTL elapsed. Expired signals are
// never confirmable afterwards.
func (s *Store) Sweep(ctx context.Context) int {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	expired := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.ps.Status == StatusPending && s.expired(e.ps) {
			s.transition(ctx, e.ps, StatusExpired)
			expired++
		}
		e.mu.Unlock()
	}
	return expired
}

// Start runs the background sweep until ctx is cancelled.
func (s *Store) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(ctx); n > 0 {
					s.log.Info("expired pending signals", zap.Int("count", n))
				}
			}
		}
	}()
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("pending signal %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *Store) expired(ps *Signal) bool {
	return ps.TTL > 0 && s.clock().Sub(ps.CreatedAt) >= ps.TTL
}

// transition flips the in-memory status and mirrors it to persistence.
// Caller holds the per-id lock.
func (s *Store) transition(ctx context.Context, ps *Signal, to Status) {
	ps.Status = to
	if s.persist != nil {
		if err := s.persist.UpdatePendingSignalStatus(ctx, ps.ID, string(to)); err != nil {
			s.log.Error("persist pending transition", zap.String("id", ps.ID), zap.Error(err))
		}
	}
	var topic events.Event
	switch to {
	case StatusConfirmed:
		topic = events.EventPendingConfirmed
	case StatusRejected:
		topic = events.EventPendingRejected
	case StatusExpired:
		topic = events.EventPendingExpired
	default:
		return
	}
	s.bus.Publish(topic, events.PendingUpdate{ID: ps.ID, Symbol: ps.Symbol, Status: string(to)})
}
