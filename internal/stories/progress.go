package stories

import "context"

type Step string

const (
	StepExtracting Step = "extracting_requirements"
	StepPersonas   Step = "identifying_personas"
	StepGenerating Step = "generating_stories"
	StepCoverage   Step = "validating_coverage"
)

// Event - начало (Done=false) или конец шага цепочки. Count - сколько сущностей получено на шаге.
type Event struct {
	Step  Step `json:"step"`
	Done  bool `json:"done"`
	Count int  `json:"count,omitempty"`
}

type ProgressFunc func(Event)

type progressKey struct{}

func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, fn)
}

// шаги идут строго последовательно, сериализация не нужна
func emitterFrom(ctx context.Context) ProgressFunc {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok {
		return fn
	}
	return func(Event) {}
}
