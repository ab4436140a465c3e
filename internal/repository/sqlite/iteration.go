package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

type IterationRepo struct {
	db *DB
}

func NewIterationRepo(db *DB) *IterationRepo {
	return &IterationRepo{db: db}
}

func (r *IterationRepo) Save(ctx context.Context, rec *domain.IterationRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO iterations (id, session_id, iteration, artifact_text, overall_score, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.SessionID,
		rec.Iteration,
		rec.ArtifactText,
		rec.Result.OverallScore,
		string(payload),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateIteration
		}
		return fmt.Errorf("save iteration: %w", err)
	}

	return nil
}

func (r *IterationRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.IterationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, iteration, artifact_text, result, created_at
		FROM iterations
		WHERE session_id = ?
		ORDER BY iteration ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	return scanIterations(rows)
}

func (r *IterationRepo) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM iterations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session iterations: %w", err)
	}
	return nil
}

// Sessions - id всех сессий в архиве, новые сверху
func (r *IterationRepo) Sessions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id FROM iterations
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanIterations(rows *sql.Rows) ([]domain.IterationRecord, error) {
	records := []domain.IterationRecord{}
	for rows.Next() {
		var rec domain.IterationRecord
		var payload, createdAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Iteration, &rec.ArtifactText, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}

		var result domain.AnalysisResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, fmt.Errorf("decode result of %s/%d: %w", rec.SessionID, rec.Iteration, err)
		}
		rec.Result = &result

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		rec.CreatedAt = t

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
