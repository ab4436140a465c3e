package analyser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
)

const synthesisMaxTokens = 8192

// Analyser оценивает текст артефакта. iteration проставляется в результат как есть.
type Analyser interface {
	Analyse(ctx context.Context, text string, iteration int) (*domain.AnalysisResult, error)
}

type Recorder interface {
	RecordAnalysis(artifactType, status string, score float64, duration time.Duration)
}

type Deps struct {
	LLM         llm.Client
	Profile     Profile
	Logger      *zap.Logger
	Metrics     Recorder
	Temperature float64
	// Concurrency - сколько измерений оценивать одновременно, <=1 последовательно
	Concurrency int
}

// LLMAnalyser - оценка по измерениям профиля, затем один вызов синтеза
type LLMAnalyser struct {
	llm         llm.Client
	profile     Profile
	logger      *zap.Logger
	metrics     Recorder
	temperature float64
	concurrency int
}

func New(deps Deps) *LLMAnalyser {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	if len(deps.Profile.Dimensions) == 0 {
		deps.Profile = ForType(deps.Profile.Type)
	}
	return &LLMAnalyser{
		llm:         deps.LLM,
		profile:     deps.Profile,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		temperature: deps.Temperature,
		concurrency: deps.Concurrency,
	}
}

func (a *LLMAnalyser) Profile() Profile { return a.profile }

func (a *LLMAnalyser) Analyse(ctx context.Context, text string, iteration int) (*domain.AnalysisResult, error) {
	start := time.Now()
	result, err := a.analyse(ctx, text, iteration)

	if a.metrics != nil {
		status, score := "ok", 0.0
		if err != nil {
			status = "error"
		} else {
			score = result.OverallScore
		}
		a.metrics.RecordAnalysis(string(a.profile.Type), status, score, time.Since(start))
	}
	return result, err
}

func (a *LLMAnalyser) analyse(ctx context.Context, text string, iteration int) (*domain.AnalysisResult, error) {
	emit := emitterFrom(ctx)

	raw, err := a.evaluateDimensions(ctx, text, emit)
	if err != nil {
		return nil, err
	}

	emit(Event{Kind: EventSynthesising, Total: len(a.profile.Dimensions)})
	a.logger.Info("synthesising dimension results",
		zap.String("artifact_type", string(a.profile.Type)),
		zap.Int("iteration", iteration),
	)

	synthesis, err := a.synthesise(ctx, text, raw)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}

	return buildResult(a.profile, synthesis, raw, iteration), nil
}

func (a *LLMAnalyser) evaluateDimensions(ctx context.Context, text string, emit ProgressFunc) ([]map[string]any, error) {
	dims := a.profile.Dimensions
	results := make([]map[string]any, len(dims))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, d := range dims {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emit(Event{Kind: EventDimensionStarted, Dimension: d.Key, Name: d.Name, Index: i + 1, Total: len(dims)})
			a.logger.Debug("evaluating dimension", zap.String("dimension", d.Key))

			req := llm.NewRequest(a.profile.SystemPrompt, dimensionPrompt(text, a.profile.Subject, d)).
				WithTemperature(a.temperature)

			var out map[string]any
			if err := llm.InvokeJSON(gctx, a.llm, req, &out); err != nil {
				return fmt.Errorf("dimension %s: %w", d.Key, err)
			}
			if out == nil {
				out = map[string]any{}
			}
			results[i] = out

			emit(Event{Kind: EventDimensionComplete, Dimension: d.Key, Name: d.Name, Index: i + 1, Total: len(dims), Score: rawScore(out)})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *LLMAnalyser) synthesise(ctx context.Context, text string, raw []map[string]any) (synthesisPayload, error) {
	byKey := make(map[string]map[string]any, len(raw))
	for i, d := range a.profile.Dimensions {
		byKey[d.Key] = raw[i]
	}
	dimJSON, err := json.MarshalIndent(byKey, "", "  ")
	if err != nil {
		return synthesisPayload{}, fmt.Errorf("marshal dimension results: %w", err)
	}

	req := llm.NewRequest(a.profile.SystemPrompt, synthesisPrompt(a.profile, string(dimJSON), text)).
		WithTemperature(a.temperature).
		WithMaxTokens(synthesisMaxTokens)

	var out synthesisPayload
	if err := llm.InvokeJSON(ctx, a.llm, req, &out); err != nil {
		return synthesisPayload{}, err
	}
	return out, nil
}

// Factory собирает анализатор под тип артефакта с общими зависимостями
type Factory struct {
	deps Deps
}

func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

func (f *Factory) ForType(t domain.ArtifactType) *LLMAnalyser {
	d := f.deps
	d.Profile = ForType(t)
	return New(d)
}

var _ Analyser = (*LLMAnalyser)(nil)
