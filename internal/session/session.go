package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/iteration"
	"github.com/kitbuilder587/ba-analyser/internal/repository"
)

// Outcome - результат одного прогона анализа в сессии
type Outcome struct {
	Result     *domain.AnalysisResult   `json:"result"`
	Comparison *domain.ComparisonReport `json:"comparison,omitempty"`
	Ready      bool                     `json:"is_ready"`
}

// Session владеет одним движком. Все операции с движком идут под mu.
type Session struct {
	ID           string
	ArtifactType domain.ArtifactType
	Threshold    float64
	CreatedAt    time.Time

	mu           sync.Mutex
	engine       *iteration.Engine
	artifactText string
	stories      []domain.UserStory
	coverage     *domain.CoverageReport

	repo    repository.IterationRepository
	metrics Recorder
	logger  *zap.Logger
}

// Analyse оценивает текущий рабочий текст как следующую итерацию
func (s *Session) Analyse(ctx context.Context) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.artifactText
	result, err := s.engine.Analyse(ctx, text)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Result: result,
		Ready:  s.engine.IsReady(result, s.Threshold),
	}
	if s.engine.CurrentIteration() >= 2 {
		report, err := s.engine.Compare(0, 0)
		if err != nil {
			return nil, err
		}
		out.Comparison = report
	}

	s.archive(ctx, result, text)
	return out, nil
}

// archive - ошибки архива только логируются, анализ уже в истории
func (s *Session) archive(ctx context.Context, result *domain.AnalysisResult, text string) {
	if s.repo == nil {
		return
	}
	rec := &domain.IterationRecord{
		SessionID:    s.ID,
		Iteration:    result.IterationNumber,
		ArtifactText: text,
		Result:       result,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.Warn("failed to archive iteration",
			zap.String("session_id", s.ID),
			zap.Int("iteration", rec.Iteration),
			zap.Error(err),
		)
	}
}

func (s *Session) Suggestions() []domain.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Suggestions(nil)
}

// ApplySuggestions заменяет рабочий текст ревизией. Оценка будет только при следующем Analyse.
func (s *Session) ApplySuggestions(ctx context.Context, acceptedIDs []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := countMatching(s.engine.Suggestions(nil), acceptedIDs)

	revised, err := s.engine.ApplySuggestions(ctx, s.artifactText, acceptedIDs)
	if err != nil {
		return "", err
	}
	// пустой ответ модели не должен затирать рабочий текст
	if err := domain.ValidateArtifact(revised); err != nil {
		return "", fmt.Errorf("revised artifact: %w", err)
	}
	s.artifactText = revised

	if applied > 0 && s.metrics != nil {
		s.metrics.RecordSuggestionsApplied(applied)
	}
	return revised, nil
}

func countMatching(suggestions []domain.Suggestion, ids []string) int {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	n := 0
	for _, s := range suggestions {
		if _, ok := want[s.ID]; ok {
			n++
		}
	}
	return n
}

func (s *Session) UpdateArtifact(text string) error {
	if err := domain.ValidateArtifact(text); err != nil {
		return err
	}
	s.mu.Lock()
	s.artifactText = text
	s.mu.Unlock()
	return nil
}

func (s *Session) ArtifactText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifactText
}

func (s *Session) Compare(current, previous int) (*domain.ComparisonReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Compare(current, previous)
}

// SetStories заменяет истории, сгенерированные по рабочему тексту
func (s *Session) SetStories(stories []domain.UserStory, coverage *domain.CoverageReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories = append([]domain.UserStory(nil), stories...)
	s.coverage = coverage
}

func (s *Session) Stories() ([]domain.UserStory, *domain.CoverageReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UserStory(nil), s.stories...), s.coverage
}

// IsReady - последний результат против порога сессии
func (s *Session) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.IsReady(nil, s.Threshold)
}

// Snapshot - согласованный срез состояния для отображения
type Snapshot struct {
	ID           string                 `json:"id"`
	ArtifactType domain.ArtifactType    `json:"artifact_type"`
	Threshold    float64                `json:"threshold"`
	Iterations   int                    `json:"iterations"`
	ArtifactText string                 `json:"artifact_text"`
	LatestResult *domain.AnalysisResult `json:"latest_result,omitempty"`
	History      []ScorePoint           `json:"history"`
	Ready        bool                   `json:"is_ready"`
	Stories      int                    `json:"stories"`
}

type ScorePoint struct {
	Iteration int     `json:"iteration"`
	Score     float64 `json:"score"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.engine.History()
	points := make([]ScorePoint, len(hist))
	for i, h := range hist {
		points[i] = ScorePoint{Iteration: h.Number, Score: h.Result.OverallScore}
	}

	return Snapshot{
		ID:           s.ID,
		ArtifactType: s.ArtifactType,
		Threshold:    s.Threshold,
		Iterations:   s.engine.CurrentIteration(),
		ArtifactText: s.artifactText,
		LatestResult: s.engine.LatestResult(),
		History:      points,
		Ready:        s.engine.IsReady(nil, s.Threshold),
		Stories:      len(s.stories),
	}
}

// Summary - строка списка сессий
type Summary struct {
	ID          string   `json:"id"`
	Iterations  int      `json:"iterations"`
	LatestScore *float64 `json:"latest_score"`
	Threshold   float64  `json:"threshold"`
	Ready       bool     `json:"is_ready"`
}

func (s *Session) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		ID:         s.ID,
		Iterations: s.engine.CurrentIteration(),
		Threshold:  s.Threshold,
		Ready:      s.engine.IsReady(nil, s.Threshold),
	}
	if latest := s.engine.LatestResult(); latest != nil {
		score := latest.OverallScore
		sum.LatestScore = &score
	}
	return sum
}
