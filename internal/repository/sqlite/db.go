package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS iterations (
    id            TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL,
    iteration     INTEGER NOT NULL CHECK (iteration > 0),
    artifact_text TEXT NOT NULL,
    overall_score REAL NOT NULL,
    result        TEXT NOT NULL,
    created_at    TEXT NOT NULL,
    UNIQUE (session_id, iteration)
);
CREATE INDEX IF NOT EXISTS idx_iterations_session ON iterations (session_id, iteration);
`

type DB struct {
	*sql.DB
}

// Open открывает (или создает) файл базы и накатывает схему
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return migrate(sqlDB)
}

// OpenMemory - база в памяти для тестов. Одно соединение, иначе у каждого своя :memory:
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return migrate(sqlDB)
}

func migrate(sqlDB *sql.DB) (*DB, error) {
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{DB: sqlDB}, nil
}
