package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS iterations (
		id            UUID PRIMARY KEY,
		session_id    TEXT NOT NULL,
		iteration     INTEGER NOT NULL CHECK (iteration > 0),
		artifact_text TEXT NOT NULL,
		overall_score DOUBLE PRECISION NOT NULL,
		result        JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (session_id, iteration)
	);
	CREATE INDEX IF NOT EXISTS idx_iterations_session ON iterations (session_id, iteration);
`

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Migrate создает таблицы, повторный вызов безопасен
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	db.Pool.Close()
}
