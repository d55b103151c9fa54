// internal/db/schema.go
package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Identifier columns referencing readers and books are TEXT, not UUID:
// historical data was written with mixed identifier representations and the
// stores match both forms at read time while writing only canonical values.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'reader',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		member_id TEXT PRIMARY KEY REFERENCES members(id),
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		copies INT NOT NULL CHECK (copies >= 0),
		total_copies INT NOT NULL,
		borrow_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		book_title TEXT NOT NULL DEFAULT '',
		book_author TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		borrowed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		due_date TIMESTAMPTZ NOT NULL,
		renewed BOOLEAN NOT NULL DEFAULT FALSE,
		renewed_at TIMESTAMPTZ,
		renew_count INT NOT NULL DEFAULT 0,
		returned BOOLEAN NOT NULL DEFAULT FALSE,
		returned_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_user_book
		ON borrow_records (user_id, book_id) WHERE NOT returned`,
	`CREATE TABLE IF NOT EXISTS borrow_history (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		book_title TEXT NOT NULL DEFAULT '',
		book_author TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		borrow_date TIMESTAMPTZ NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ,
		is_renewed BOOLEAN NOT NULL DEFAULT FALSE,
		renew_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_history_user ON borrow_history (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_history_book ON borrow_history (book_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS borrow_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		book_id TEXT NOT NULL,
		book_title TEXT NOT NULL DEFAULT '',
		book_author TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		handled_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_requests_pending
		ON borrow_requests (user_id, book_id, type) WHERE status = 'pending'`,
}

// Migrate applies the schema. Statements are idempotent so running it on
// every startup is safe.
func Migrate(ctx context.Context, database *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
