package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("record not found")

// SaveTrade inserts a trade outcome record.
func (d *Database) SaveTrade(ctx context.Context, t Trade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, mode, action, qty, entry_price, success, unprotected, reason, legs, realized_pnl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Symbol, t.Mode, t.Action, t.Qty, t.EntryPrice, boolInt(t.Success), boolInt(t.Unprotected), t.Reason, t.Legs, t.RealizedPnL, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// DailyRealizedPnL sums realized PnL of trades recorded since the
// given instant (typically UTC midnight).
func (d *Database) DailyRealizedPnL(ctx context.Context, since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := d.DB.QueryRowContext(ctx, `
		SELECT SUM(realized_pnl) FROM trades WHERE created_at >= ?
	`, since.UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum realized pnl: %w", err)
	}
	return total.Float64, nil
}

// SavePendingSignal inserts a pending-signal record.
func (d *Database) SavePendingSignal(ctx context.Context, p PendingSignal) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO pending_signals (id, symbol, payload, status, ttl_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Symbol, p.Payload, p.Status, p.TTLSeconds, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert pending signal: %w", err)
	}
	return nil
}

// UpdatePendingSignalStatus moves a pending signal to a new status.
func (d *Database) UpdatePendingSignalStatus(ctx context.Context, id, status string) error {
	res, err := d.DB.ExecContext(ctx, `
		UPDATE pending_signals SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("update pending signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingSignals returns pending signals, optionally filtered by
// status (empty status lists all).
func (d *Database) ListPendingSignals(ctx context.Context, status string) ([]PendingSignal, error) {
	query := `
		SELECT id, symbol, payload, status, ttl_seconds, created_at, updated_at
		FROM pending_signals
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending signals: %w", err)
	}
	defer rows.Close()

	var out []PendingSignal
	for rows.Next() {
		var p PendingSignal
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Payload, &p.Status, &p.TTLSeconds, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending signal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
