// Package migrations applies the database schema. Statements are idempotent
// and run in order on every startup; there is no version table.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		account_id BIGSERIAL PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		message_id        BIGSERIAL PRIMARY KEY,
		posted_by         BIGINT NOT NULL,
		message_text      VARCHAR(255) NOT NULL,
		time_posted_epoch BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_posted_by ON messages (posted_by)`,
}

// Apply runs every schema statement against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
