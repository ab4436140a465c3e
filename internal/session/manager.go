package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/iteration"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
	"github.com/kitbuilder587/ba-analyser/internal/repository"
)

type Recorder interface {
	SetActiveSessions(count int)
	RecordSuggestionsApplied(n int)
}

type Deps struct {
	// NewAnalyser выбирает анализатор под тип артефакта
	NewAnalyser func(domain.ArtifactType) analyser.Analyser
	LLM         llm.Client
	Repo        repository.IterationRepository
	Logger      *zap.Logger
	Metrics     Recorder
}

// Manager - реестр сессий, у каждой свой движок и свой мьютекс
type Manager struct {
	deps     Deps
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create(artifactText string, threshold float64, artifactType domain.ArtifactType) (*Session, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return m.CreateWithID(id, artifactText, threshold, artifactType)
}

func (m *Manager) CreateWithID(id, artifactText string, threshold float64, artifactType domain.ArtifactType) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrEmptySessionID
	}
	if err := domain.ValidateArtifact(artifactText); err != nil {
		return nil, err
	}
	if err := domain.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if artifactType == "" {
		artifactType = domain.ArtifactRequirements
	}
	if !artifactType.IsValid() {
		return nil, domain.ErrInvalidArtifactType
	}

	logger := m.deps.Logger.With(zap.String("session_id", id))
	s := &Session{
		ID:           id,
		ArtifactType: artifactType,
		Threshold:    threshold,
		CreatedAt:    time.Now(),
		engine:       iteration.NewEngine(m.deps.NewAnalyser(artifactType), m.deps.LLM, logger),
		artifactText: artifactText,
		repo:         m.deps.Repo,
		metrics:      m.deps.Metrics,
		logger:       logger,
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, domain.ErrSessionExists
	}
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.reportActive(count)
	logger.Info("session created",
		zap.String("artifact_type", artifactType.String()),
		zap.Float64("threshold", threshold),
	)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Delete убирает сессию из памяти, архив итераций остается
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	m.reportActive(count)
	m.deps.Logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// PurgeArchive удаляет архив итераций сессии
func (m *Manager) PurgeArchive(ctx context.Context, id string) error {
	if m.deps.Repo == nil {
		return nil
	}
	return m.deps.Repo.DeleteSession(ctx, id)
}

// Archive - сохраненные итерации сессии, без репозитория пусто
func (m *Manager) Archive(ctx context.Context, id string) ([]domain.IterationRecord, error) {
	if m.deps.Repo == nil {
		return []domain.IterationRecord{}, nil
	}
	return m.deps.Repo.ListBySession(ctx, id)
}

// List - сводка по сессиям, старые первыми
func (m *Manager) List() []Summary {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	out := make([]Summary, len(all))
	for i, s := range all {
		out[i] = s.summary()
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) reportActive(count int) {
	if m.deps.Metrics != nil {
		m.deps.Metrics.SetActiveSessions(count)
	}
}
