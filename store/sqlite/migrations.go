package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Drip store (SQLite).
var Migrations = migrate.NewGroup("drip")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_drip_streams",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return execAll(ctx, exec, `
CREATE TABLE IF NOT EXISTS drip_streams (
    id                INTEGER PRIMARY KEY,
    sender            TEXT NOT NULL,
    recipient         TEXT NOT NULL,
    total_amount      INTEGER NOT NULL DEFAULT 0,
    amount_per_block  INTEGER NOT NULL DEFAULT 0,
    start_block       INTEGER NOT NULL DEFAULT 0,
    end_block         INTEGER NOT NULL DEFAULT 0,
    last_claim_block  INTEGER NOT NULL DEFAULT 0,
    claimed_amount    INTEGER NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'active',
    pause_start_block INTEGER,
    paused_duration   INTEGER NOT NULL DEFAULT 0,
    fee_rate          INTEGER NOT NULL DEFAULT 0,
    fee               INTEGER NOT NULL DEFAULT 0,
    metadata          TEXT NOT NULL DEFAULT '',
    created_block     INTEGER NOT NULL DEFAULT 0,
    created_at        DATETIME NOT NULL,
    updated_at        DATETIME NOT NULL
)`,
					`CREATE INDEX IF NOT EXISTS idx_drip_streams_sender ON drip_streams (sender, id)`,
					`CREATE INDEX IF NOT EXISTS idx_drip_streams_recipient ON drip_streams (recipient, id)`,
					`CREATE INDEX IF NOT EXISTS idx_drip_streams_status ON drip_streams (status)`,
				)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS drip_streams`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_drip_aggregates",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return execAll(ctx, exec, `
CREATE TABLE IF NOT EXISTS drip_aggregates (
    identity        TEXT PRIMARY KEY,
    created         TEXT NOT NULL DEFAULT '[]',
    receiving       TEXT NOT NULL DEFAULT '[]',
    created_count   INTEGER NOT NULL DEFAULT 0,
    receiving_count INTEGER NOT NULL DEFAULT 0,
    active_outgoing INTEGER NOT NULL DEFAULT 0,
    volume_sent     INTEGER NOT NULL DEFAULT 0,
    volume_received INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL
)`)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS drip_aggregates`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_drip_globals",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return execAll(ctx, exec, `
CREATE TABLE IF NOT EXISTS drip_globals (
    id              TEXT PRIMARY KEY,
    next_id         INTEGER NOT NULL DEFAULT 0,
    paused          INTEGER NOT NULL DEFAULT 0,
    fee_rate        INTEGER NOT NULL DEFAULT 0,
    total_streams   INTEGER NOT NULL DEFAULT 0,
    active_streams  INTEGER NOT NULL DEFAULT 0,
    total_volume    INTEGER NOT NULL DEFAULT 0,
    total_fees      INTEGER NOT NULL DEFAULT 0,
    total_claimed   INTEGER NOT NULL DEFAULT 0,
    total_refunded  INTEGER NOT NULL DEFAULT 0,
    event_seq       INTEGER NOT NULL DEFAULT 0,
    treasury_locked INTEGER NOT NULL DEFAULT 0,
    emergency_state TEXT NOT NULL DEFAULT ''
)`)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS drip_globals`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_drip_access",
			Version: "20250301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return execAll(ctx, exec, `
CREATE TABLE IF NOT EXISTS drip_roles (
    identity   TEXT PRIMARY KEY,
    roles      INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
)`,
					`
CREATE TABLE IF NOT EXISTS drip_pending_transfers (
    from_admin   TEXT PRIMARY KEY,
    to_admin     TEXT NOT NULL,
    initiated_at INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL
)`,
					`CREATE INDEX IF NOT EXISTS idx_drip_pending_to ON drip_pending_transfers (to_admin)`,
				)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				return execAll(ctx, exec,
					`DROP TABLE IF EXISTS drip_pending_transfers`,
					`DROP TABLE IF EXISTS drip_roles`,
				)
			},
		},
		&migrate.Migration{
			Name:    "create_drip_events",
			Version: "20250301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return execAll(ctx, exec, `
CREATE TABLE IF NOT EXISTS drip_events (
    id        TEXT PRIMARY KEY,
    seq       INTEGER NOT NULL,
    name      TEXT NOT NULL,
    height    INTEGER NOT NULL DEFAULT 0,
    stream_id INTEGER NOT NULL DEFAULT 0,
    actor     TEXT NOT NULL DEFAULT '',
    fields    TEXT NOT NULL DEFAULT '{}',
    "timestamp" DATETIME NOT NULL
)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_drip_events_seq ON drip_events (seq)`,
					`CREATE INDEX IF NOT EXISTS idx_drip_events_stream ON drip_events (stream_id, seq)`,
					`CREATE INDEX IF NOT EXISTS idx_drip_events_name ON drip_events (name, seq)`,
				)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS drip_events`)
				return err
			},
		},
	)
}

func execAll(ctx context.Context, exec migrate.Executor, statements ...string) error {
	for _, stmt := range statements {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
