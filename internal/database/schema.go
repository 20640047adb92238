package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgxmock pools.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS moderation_queue (
		id               TEXT PRIMARY KEY,
		content_id       TEXT NOT NULL,
		content_type     TEXT NOT NULL,
		content_data     TEXT NOT NULL,
		reason           TEXT NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		evidence_key     TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS moderation_queue_created_at_idx ON moderation_queue (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS moderation_reviews (
		id           TEXT PRIMARY KEY,
		record_id    TEXT NOT NULL REFERENCES moderation_queue (id),
		moderator_id TEXT NOT NULL,
		decision     TEXT NOT NULL,
		note         TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS moderation_reviews_record_key ON moderation_reviews (record_id)`,
}

// Migrate creates the moderation tables if they are missing.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
