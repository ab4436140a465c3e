package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

type MemoryIterationRepository struct {
	mu       sync.RWMutex
	sessions map[string]map[int]domain.IterationRecord
}

func NewMemoryIterationRepository() *MemoryIterationRepository {
	return &MemoryIterationRepository{
		sessions: make(map[string]map[int]domain.IterationRecord),
	}
}

func (m *MemoryIterationRepository) Save(ctx context.Context, rec *domain.IterationRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	iters, ok := m.sessions[rec.SessionID]
	if !ok {
		iters = make(map[int]domain.IterationRecord)
		m.sessions[rec.SessionID] = iters
	}
	if _, exists := iters[rec.Iteration]; exists {
		return domain.ErrDuplicateIteration
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	iters[rec.Iteration] = *rec
	return nil
}

func (m *MemoryIterationRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.IterationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iters := m.sessions[sessionID]
	out := make([]domain.IterationRecord, 0, len(iters))
	for _, rec := range iters {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Iteration < out[j].Iteration
	})
	return out, nil
}

func (m *MemoryIterationRepository) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryIterationRepository) Sessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]time.Time, len(m.sessions))
	ids := make([]string, 0, len(m.sessions))
	for id, iters := range m.sessions {
		for _, rec := range iters {
			if rec.CreatedAt.After(latest[id]) {
				latest[id] = rec.CreatedAt
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if !latest[ids[i]].Equal(latest[ids[j]]) {
			return latest[ids[i]].After(latest[ids[j]])
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

var (
	_ IterationRepository = (*MemoryIterationRepository)(nil)
	_ SessionLister       = (*MemoryIterationRepository)(nil)
)
