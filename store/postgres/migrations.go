package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Drip store.
var Migrations = migrate.NewGroup("drip")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_drip_streams",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS drip_streams (
    id                BIGINT PRIMARY KEY,
    sender            TEXT NOT NULL,
    recipient         TEXT NOT NULL,
    total_amount      BIGINT NOT NULL DEFAULT 0,
    amount_per_block  BIGINT NOT NULL DEFAULT 0,
    start_block       BIGINT NOT NULL DEFAULT 0,
    end_block         BIGINT NOT NULL DEFAULT 0,
    last_claim_block  BIGINT NOT NULL DEFAULT 0,
    claimed_amount    BIGINT NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'active',
    pause_start_block BIGINT,
    paused_duration   BIGINT NOT NULL DEFAULT 0,
    fee_rate          BIGINT NOT NULL DEFAULT 0,
    fee               BIGINT NOT NULL DEFAULT 0,
    metadata          TEXT NOT NULL DEFAULT '',
    created_block     BIGINT NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_drip_streams_sender ON drip_streams (sender, id);
CREATE INDEX IF NOT EXISTS idx_drip_streams_recipient ON drip_streams (recipient, id);
CREATE INDEX IF NOT EXISTS idx_drip_streams_status ON drip_streams (status);
`)
				return err
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
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS drip_aggregates (
    identity        TEXT PRIMARY KEY,
    created         JSONB NOT NULL DEFAULT '[]',
    receiving       JSONB NOT NULL DEFAULT '[]',
    created_count   BIGINT NOT NULL DEFAULT 0,
    receiving_count BIGINT NOT NULL DEFAULT 0,
    active_outgoing BIGINT NOT NULL DEFAULT 0,
    volume_sent     BIGINT NOT NULL DEFAULT 0,
    volume_received BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
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
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS drip_globals (
    id              TEXT PRIMARY KEY,
    next_id         BIGINT NOT NULL DEFAULT 0,
    paused          BOOLEAN NOT NULL DEFAULT FALSE,
    fee_rate        BIGINT NOT NULL DEFAULT 0,
    total_streams   BIGINT NOT NULL DEFAULT 0,
    active_streams  BIGINT NOT NULL DEFAULT 0,
    total_volume    BIGINT NOT NULL DEFAULT 0,
    total_fees      BIGINT NOT NULL DEFAULT 0,
    total_claimed   BIGINT NOT NULL DEFAULT 0,
    total_refunded  BIGINT NOT NULL DEFAULT 0,
    event_seq       BIGINT NOT NULL DEFAULT 0,
    treasury_locked BOOLEAN NOT NULL DEFAULT FALSE,
    emergency_state TEXT NOT NULL DEFAULT ''
);
`)
				return err
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
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS drip_roles (
    identity   TEXT PRIMARY KEY,
    roles      INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS drip_pending_transfers (
    from_admin   TEXT PRIMARY KEY,
    to_admin     TEXT NOT NULL,
    initiated_at BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_drip_pending_to ON drip_pending_transfers (to_admin);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS drip_pending_transfers;
DROP TABLE IF EXISTS drip_roles;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_drip_events",
			Version: "20250301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS drip_events (
    id          TEXT PRIMARY KEY,
    seq         BIGINT NOT NULL,
    name        TEXT NOT NULL,
    height      BIGINT NOT NULL DEFAULT 0,
    stream_id   BIGINT NOT NULL DEFAULT 0,
    actor       TEXT NOT NULL DEFAULT '',
    fields      JSONB NOT NULL DEFAULT '{}',
    "timestamp" TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_drip_events_seq ON drip_events (seq);
CREATE INDEX IF NOT EXISTS idx_drip_events_stream ON drip_events (stream_id, seq);
CREATE INDEX IF NOT EXISTS idx_drip_events_name ON drip_events (name, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS drip_events`)
				return err
			},
		},
	)
}
