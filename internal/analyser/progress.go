package analyser

import (
	"context"
	"sync"
)

type EventKind string

const (
	EventDimensionStarted  EventKind = "dimension_started"
	EventDimensionComplete EventKind = "dimension_complete"
	EventSynthesising      EventKind = "synthesising"
)

type Event struct {
	Kind      EventKind `json:"kind"`
	Dimension string    `json:"dimension,omitempty"`
	Name      string    `json:"name,omitempty"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total"`
	Score     float64   `json:"score,omitempty"`
}

type ProgressFunc func(Event)

type progressKey struct{}

// WithProgress вешает наблюдателя на один вызов Analyse (SSE, прогресс-бар)
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, fn)
}

// emitterFrom сериализует вызовы наблюдателя: измерения могут идти параллельно
func emitterFrom(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	if fn == nil {
		return func(Event) {}
	}
	var mu sync.Mutex
	return func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		fn(e)
	}
}
