package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSaveTrade(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	trade := Trade{
		ID:          "t-1",
		Symbol:      "BTCUSDT",
		Mode:        "auto",
		Action:      "BUY",
		Qty:         "0.1",
		EntryPrice:  "50000",
		Success:     true,
		Unprotected: false,
		Legs:        `[{"role":"ENTRY","status":"FILLED"}]`,
		RealizedPnL: 0,
		CreatedAt:   time.Now(),
	}
	if err := database.SaveTrade(ctx, trade); err != nil {
		t.Fatalf("SaveTrade: %v", err)
	}

	// Duplicate ids violate the primary key.
	if err := database.SaveTrade(ctx, trade); err == nil {
		t.Fatal("duplicate trade id inserted without error")
	}
}

func TestDailyRealizedPnL(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	midnight := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	insert := func(id string, pnl float64, at time.Time) {
		t.Helper()
		err := database.SaveTrade(ctx, Trade{
			ID: id, Symbol: "BTCUSDT", Mode: "auto", Action: "CLOSE_SELL",
			Qty: "0.1", EntryPrice: "50000", Success: true,
			RealizedPnL: pnl, CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("SaveTrade(%s): %v", id, err)
		}
	}

	insert("yesterday", -300, midnight.Add(-2*time.Hour))
	insert("today-loss", -120.5, midnight.Add(3*time.Hour))
	insert("today-win", 20.5, midnight.Add(6*time.Hour))

	got, err := database.DailyRealizedPnL(ctx, midnight)
	if err != nil {
		t.Fatalf("DailyRealizedPnL: %v", err)
	}
	if got != -100 {
		t.Fatalf("DailyRealizedPnL=%v, expected -100", got)
	}
}

func TestDailyRealizedPnLEmpty(t *testing.T) {
	database := newTestDB(t)

	got, err := database.DailyRealizedPnL(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("DailyRealizedPnL on empty table: %v", err)
	}
	if got != 0 {
		t.Fatalf("DailyRealizedPnL=%v on empty table, expected 0", got)
	}
}

func TestPendingSignalLifecycle(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	rec := PendingSignal{
		ID:         "ps-1",
		Symbol:     "ETHUSDT",
		Payload:    `{"action":"BUY"}`,
		Status:     "PENDING",
		TTLSeconds: 3600,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := database.SavePendingSignal(ctx, rec); err != nil {
		t.Fatalf("SavePendingSignal: %v", err)
	}

	if err := database.UpdatePendingSignalStatus(ctx, "ps-1", "CONFIRMED"); err != nil {
		t.Fatalf("UpdatePendingSignalStatus: %v", err)
	}

	t.Run("filter by status", func(t *testing.T) {
		confirmed, err := database.ListPendingSignals(ctx, "CONFIRMED")
		if err != nil {
			t.Fatalf("ListPendingSignals: %v", err)
		}
		if len(confirmed) != 1 {
			t.Fatalf("got %d confirmed signals, expected 1", len(confirmed))
		}
		if confirmed[0].Payload != rec.Payload {
			t.Errorf("Payload=%q, expected %q", confirmed[0].Payload, rec.Payload)
		}

		pending, err := database.ListPendingSignals(ctx, "PENDING")
		if err != nil {
			t.Fatalf("ListPendingSignals: %v", err)
		}
		if len(pending) != 0 {
			t.Fatalf("got %d pending signals, expected 0", len(pending))
		}
	})

	t.Run("list all", func(t *testing.T) {
		all, err := database.ListPendingSignals(ctx, "")
		if err != nil {
			t.Fatalf("ListPendingSignals: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("got %d signals, expected 1", len(all))
		}
	})
}

func TestUpdateUnknownPendingSignal(t *testing.T) {
	database := newTestDB(t)

	err := database.UpdatePendingSignalStatus(context.Background(), "missing", "REJECTED")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
