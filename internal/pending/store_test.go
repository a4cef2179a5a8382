package pending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeflow/internal/events"
	"tradeflow/internal/pipeline"
	"tradeflow/internal/signal"
)

func testSignal() signal.Signal {
	return signal.Signal{
		Action:      signal.ActionBuy,
		EntryPrice:  decimal.NewFromInt(50000),
		StopLoss:    decimal.NewFromInt(49000),
		TakeProfit1: decimal.NewFromInt(52000),
		TakeProfit2: decimal.NewFromInt(53000),
		Confidence:  0.8,
	}
}

func newTestStore() *Store {
	return NewStore(nil, events.NewBus(), nil)
}

func okExec(calls *int) func(context.Context, *signal.Signal, string) *pipeline.Outcome {
	return func(context.Context, *signal.Signal, string) *pipeline.Outcome {
		*calls++
		return &pipeline.Outcome{Success: true}
	}
}

func TestConfirmRunsExecutionOnce(t *testing.T) {
	store := newTestStore()
	ps, err := store.Create(context.Background(), "BTCUSDT", testSignal(), time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	calls := 0
	out, err := store.Confirm(context.Background(), ps.ID, okExec(&calls))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if calls != 1 {
		t.Fatalf("exec called %d times, expected 1", calls)
	}
	if out.PendingSignalID != ps.ID {
		t.Fatalf("PendingSignalID=%q, expected %q", out.PendingSignalID, ps.ID)
	}

	got, err := store.Get(ps.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("Status=%s, expected CONFIRMED", got.Status)
	}
	if got.Outcome == nil || !got.Outcome.Success {
		t.Fatal("outcome not attached to the record")
	}
}

func TestSecondConfirmConflicts(t *testing.T) {
	store := newTestStore()
	ps, _ := store.Create(context.Background(), "BTCUSDT", testSignal(), time.Hour)

	calls := 0
	if _, err := store.Confirm(context.Background(), ps.ID, okExec(&calls)); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}

	_, err := store.Confirm(context.Background(), ps.ID, okExec(&calls))
	var conflict *StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *StateConflictError, got %v", err)
	}
	if conflict.From != StatusConfirmed {
		t.Fatalf("From=%s, expected CONFIRMED", conflict.From)
	}
	if calls != 1 {
		t.Fatalf("exec called %d times across both confirms, expected 1", calls)
	}
}

func TestConcurrentConfirmsExecuteOnce(t *testing.T) {
	store := newTestStore()
	ps, _ := store.Create(context.Background(), "BTCUSDT", testSignal(), time.Hour)

	var mu sync.Mutex
	calls := 0
	exec := func(context.Context, *signal.Signal, string) *pipeline.Outcome {
		mu.Lock()
		calls++
		mu.Unlock()
		return &pipeline.Outcome{Success: true}
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Confirm(context.Background(), ps.ID, exec)
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("exec called %d times, expected exactly 1", calls)
	}
	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var conflict *StateConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("loser got %v, expected *StateConflictError", err)
		}
	}
	if winners != 1 {
		t.Fatalf("%d confirms succeeded, expected exactly 1", winners)
	}
}

func TestRejectSkipsExecution(t *testing.T) {
	store := newTestStore()
	ps, _ := store.Create(context.Background(), "BTCUSDT", testSignal(), time.Hour)

	if err := store.Reject(context.Background(), ps.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	got, _ := store.Get(ps.ID)
	if got.Status != StatusRejected {
		t.Fatalf("Status=%s, expected REJECTED", got.Status)
	}

	calls := 0
	_, err := store.Confirm(context.Background(), ps.ID, okExec(&calls))
	var conflict *StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *StateConflictError after reject, got %v", err)
	}
	if calls != 0 {
		t.Fatal("exec ran on a rejected signal")
	}
}

func TestExpiredSignalNeverConfirms(t *testing.T) {
	store := newTestStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	ps, _ := store.Create(context.Background(), "BTCUSDT", testSignal(), time.Minute)

	now = now.Add(2 * time.Minute)

	calls := 0
	_, err := store.Confirm(context.Background(), ps.ID, okExec(&calls))
	var conflict *StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *StateConflictError, got %v", err)
	}
	if conflict.From != StatusExpired {
		t.Fatalf("From=%s, expected EXPIRED", conflict.From)
	}
	if calls != 0 {
		t.Fatal("exec ran on an expired signal")
	}

	got, _ := store.Get(ps.ID)
	if got.Status != StatusExpired {
		t.Fatalf("Status=%s, expected EXPIRED", got.Status)
	}
}

func TestSweepExpiresOnlyStale(t *testing.T) {
	store := newTestStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	stale, _ := store.Create(context.Background(), "BTCUSDT", testSignal(), time.Minute)
	fresh, _ := store.Create(context.Background(), "ETHUSDT", testSignal(), time.Hour)
	forever, _ := store.Create(context.Background(), "SOLUSDT", testSignal(), 0)

	now = now.Add(5 * time.Minute)

	if n := store.Sweep(context.Background()); n != 1 {
		t.Fatalf("Sweep expired %d, expected 1", n)
	}

	for id, want := range map[string]Status{
		stale.ID:   StatusExpired,
		fresh.ID:   StatusPending,
		forever.ID: StatusPending,
	} {
		got, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if got.Status != want {
			t.Errorf("signal %s Status=%s, expected %s", id, got.Status, want)
		}
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := newTestStore()
	a, _ := store.Create(context.Background(), "BTCUSDT", testSignal(), time.Hour)
	_, _ = store.Create(context.Background(), "ETHUSDT", testSignal(), time.Hour)

	if err := store.Reject(context.Background(), a.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if got := store.List(StatusPending); len(got) != 1 {
		t.Fatalf("List(PENDING)=%d entries, expected 1", len(got))
	}
	if got := store.List(StatusRejected); len(got) != 1 {
		t.Fatalf("List(REJECTED)=%d entries, expected 1", len(got))
	}
	if got := store.List(""); len(got) != 2 {
		t.Fatalf("List(all)=%d entries, expected 2", len(got))
	}
}

func TestConfirmUnknownID(t *testing.T) {
	store := newTestStore()
	calls := 0
	_, err := store.Confirm(context.Background(), "nope", okExec(&calls))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
