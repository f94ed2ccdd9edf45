// Package db provides database connection helpers, schema migration, and the
// audit store that mirrors game lifecycle events into Postgres.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty dsn")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and indices.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			asset TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			start_price NUMERIC,
			predicted_price NUMERIC,
			end_price NUMERIC,
			winning_side TEXT,
			state TEXT NOT NULL,
			poll_message_id INTEGER,
			started_at TIMESTAMPTZ NOT NULL,
			settled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_asset_state ON games(asset, state)`,
		`CREATE INDEX IF NOT EXISTS idx_games_started_at ON games(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_games_chat_id ON games(chat_id)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
