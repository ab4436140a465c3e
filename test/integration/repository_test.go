package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	pgRepo "github.com/kitbuilder587/ba-analyser/internal/repository/postgres"
)

var testDB *pgRepo.DB

func TestMain(m *testing.M) {
	if os.Getenv("SHORT_TESTS") == "1" {
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	testDB, err = pgRepo.New(ctx, connStr)
	if err != nil {
		panic(err)
	}

	if err := testDB.Migrate(ctx); err != nil {
		panic(err)
	}
	// повторная миграция не должна падать
	if err := testDB.Migrate(ctx); err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

func iterationRecord(sessionID string, iteration int, score float64, issueIDs ...string) *domain.IterationRecord {
	result := &domain.AnalysisResult{
		ArtifactType:    domain.ArtifactProcess,
		OverallScore:    score,
		IterationNumber: iteration,
		Dimensions: []domain.DimensionScore{
			{Name: "Structure", Score: score, Findings: []string{}, Severity: domain.SeverityForScore(score)},
		},
		Issues:      []domain.Issue{},
		Suggestions: []domain.Suggestion{},
	}
	for _, id := range issueIDs {
		result.Issues = append(result.Issues, domain.Issue{ID: id, Severity: domain.SeverityWarning})
	}
	return &domain.IterationRecord{
		SessionID:    sessionID,
		Iteration:    iteration,
		ArtifactText: "1. Customer submits order\n2. Clerk approves",
		Result:       result,
	}
}

func TestIterationRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	repo := pgRepo.NewIterationRepo(testDB)

	first := iterationRecord("pg-session", 1, 45, "ISSUE-001")
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if first.ID == "" {
		t.Error("Save() did not set record ID")
	}

	if err := repo.Save(ctx, iterationRecord("pg-session", 2, 72, "ISSUE-002")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	err := repo.Save(ctx, iterationRecord("pg-session", 2, 90))
	if !errors.Is(err, domain.ErrDuplicateIteration) {
		t.Errorf("Save() duplicate error = %v, want ErrDuplicateIteration", err)
	}

	records, err := repo.ListBySession(ctx, "pg-session")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListBySession() got %d records, want 2", len(records))
	}
	if records[0].Iteration != 1 || records[1].Iteration != 2 {
		t.Errorf("records out of order: %d, %d", records[0].Iteration, records[1].Iteration)
	}
	if records[1].Result.OverallScore != 72 {
		t.Errorf("OverallScore = %v, want 72", records[1].Result.OverallScore)
	}
	if records[1].Result.Issues[0].ID != "ISSUE-002" {
		t.Errorf("Issues = %+v", records[1].Result.Issues)
	}
	if records[0].ID != first.ID {
		t.Errorf("ID = %v, want %v", records[0].ID, first.ID)
	}

	empty, err := repo.ListBySession(ctx, "unknown-session")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListBySession(unknown) got %d records, want 0", len(empty))
	}

	if err := repo.DeleteSession(ctx, "pg-session"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	records, _ = repo.ListBySession(ctx, "pg-session")
	if len(records) != 0 {
		t.Errorf("ListBySession() after delete got %d records, want 0", len(records))
	}
}

func TestIterationRepository_InvalidRecord_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	repo := pgRepo.NewIterationRepo(testDB)

	rec := iterationRecord("pg-invalid", 1, 50)
	rec.Result = nil
	if err := repo.Save(context.Background(), rec); !errors.Is(err, domain.ErrMissingResult) {
		t.Errorf("Save() error = %v, want ErrMissingResult", err)
	}
}
