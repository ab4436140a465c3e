package repository

import (
	"context"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

// IterationRepository - архив итераций сессий. Движок живет в памяти,
// сюда попадает только уже посчитанный результат.
type IterationRepository interface {
	Save(ctx context.Context, rec *domain.IterationRecord) error
	// ListBySession возвращает записи по возрастанию номера итерации, для неизвестной сессии пустой слайс
	ListBySession(ctx context.Context, sessionID string) ([]domain.IterationRecord, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionLister - архив, который умеет перечислить сессии (новые сверху)
type SessionLister interface {
	Sessions(ctx context.Context) ([]string, error)
}
