package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS exchange_events (
		seq          BIGSERIAL PRIMARY KEY,
		id           UUID NOT NULL UNIQUE,
		type         TEXT NOT NULL,
		collection   TEXT NOT NULL,
		asset_id     BIGINT NOT NULL,
		actor        TEXT NOT NULL,
		counterparty TEXT NOT NULL DEFAULT '',
		denomination TEXT NOT NULL DEFAULT '',
		amount       TEXT NOT NULL DEFAULT '',
		attributes   JSONB NOT NULL DEFAULT '{}'::jsonb,
		occurred_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS exchange_events_asset_idx ON exchange_events (collection, asset_id)`,
	`CREATE INDEX IF NOT EXISTS exchange_events_type_idx ON exchange_events (type)`,
}

// Apply creates the journal schema. Every statement is idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
