package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

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

	query := `
		INSERT INTO iterations (id, session_id, iteration, artifact_text, overall_score, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Iteration,
		rec.ArtifactText,
		rec.Result.OverallScore,
		payload,
		rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateError(err) {
			return domain.ErrDuplicateIteration
		}
		return fmt.Errorf("save iteration: %w", err)
	}

	return nil
}

func (r *IterationRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.IterationRecord, error) {
	query := `
		SELECT id::text, session_id, iteration, artifact_text, result, created_at
		FROM iterations
		WHERE session_id = $1
		ORDER BY iteration ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	return scanIterations(rows)
}

func (r *IterationRepo) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM iterations WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session iterations: %w", err)
	}
	return nil
}

// Sessions - id всех сессий в архиве, новые сверху
func (r *IterationRepo) Sessions(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_id FROM iterations
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
	`)
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

func scanIterations(rows pgx.Rows) ([]domain.IterationRecord, error) {
	records := []domain.IterationRecord{}
	for rows.Next() {
		var rec domain.IterationRecord
		var payload []byte
		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Iteration,
			&rec.ArtifactText,
			&payload,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}

		var result domain.AnalysisResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("decode result of %s/%d: %w", rec.SessionID, rec.Iteration, err)
		}
		rec.Result = &result
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

// isDuplicateError - нарушение unique constraint
func isDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
