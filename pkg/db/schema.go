package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    mode TEXT NOT NULL,
    action TEXT NOT NULL,
    qty TEXT NOT NULL,
    entry_price TEXT NOT NULL,
    success INTEGER NOT NULL DEFAULT 0,
    unprotected INTEGER NOT NULL DEFAULT 0,
    reason TEXT,
    legs TEXT,
    realized_pnl REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_created ON trades(created_at);

CREATE TABLE IF NOT EXISTS pending_signals (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    payload TEXT NOT NULL,
    status TEXT NOT NULL,
    ttl_seconds INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_signals(status);
`

func (d *Database) migrate() error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
