package iteration

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
)

const DefaultThreshold = 80.0

const applySystemPrompt = "You are a precise text editor. Apply the accepted changes to the artifact " +
	"exactly as specified. Return ONLY the revised artifact text with the changes applied. " +
	"Do not add commentary or explanations."

const applyUserPrompt = `<artifact>
%s
</artifact>

<accepted_suggestions>
%s
</accepted_suggestions>

<instructions>
Apply each accepted suggestion to the artifact above: find the original text and replace it
with the suggested text. If the original text cannot be found exactly, apply the change as
closely as possible to its intent.

Return ONLY the revised artifact text with all accepted changes applied.
Do not wrap in code fences. Do not add any commentary.
</instructions>`

type snapshot struct {
	result   *domain.AnalysisResult
	artifact string
}

// Engine ведет историю итераций одной сессии.
// Не потокобезопасен: конкурентный доступ сериализует вызывающий (см. session.Session).
type Engine struct {
	analyser analyser.Analyser
	llm      llm.Client
	logger   *zap.Logger
	history  []snapshot
}

func NewEngine(a analyser.Analyser, client llm.Client, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		analyser: a,
		llm:      client,
		logger:   logger,
	}
}

// Analyse оценивает текст как следующую итерацию. Ошибка анализатора возвращается как есть,
// история при этом не меняется.
func (e *Engine) Analyse(ctx context.Context, artifactText string) (*domain.AnalysisResult, error) {
	iteration := len(e.history) + 1
	e.logger.Info("starting analysis iteration", zap.Int("iteration", iteration))

	result, err := e.analyser.Analyse(ctx, artifactText, iteration)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: analyser returned no result", domain.ErrInternal)
	}

	e.recordIteration(result, artifactText)
	return result, nil
}

// recordIteration - единственное место, где растет история
func (e *Engine) recordIteration(result *domain.AnalysisResult, artifactText string) {
	e.history = append(e.history, snapshot{result: result, artifact: artifactText})
}

// Suggestions - копия предложений result, по умолчанию последней итерации
func (e *Engine) Suggestions(result *domain.AnalysisResult) []domain.Suggestion {
	if result == nil {
		result = e.LatestResult()
	}
	if result == nil {
		return []domain.Suggestion{}
	}
	return result.SuggestionsCopy()
}

// ApplySuggestions просит LLM внести принятые предложения последней итерации в текст.
// Замена не гарантированно дословная: если исходный фрагмент не найден, модель правит по смыслу.
// История не меняется, чтобы оценить ревизию нужен отдельный Analyse.
func (e *Engine) ApplySuggestions(ctx context.Context, artifactText string, acceptedIDs []string) (string, error) {
	latest := e.LatestResult()
	if latest == nil {
		return artifactText, nil
	}

	accepted := make(map[string]struct{}, len(acceptedIDs))
	for _, id := range acceptedIDs {
		accepted[id] = struct{}{}
	}

	var selected []domain.Suggestion
	for _, s := range latest.Suggestions {
		if _, ok := accepted[s.ID]; ok {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return artifactText, nil
	}

	blocks := make([]string, len(selected))
	for i, s := range selected {
		blocks[i] = fmt.Sprintf("Suggestion %s:\n  Find: %s\n  Replace with: %s\n  Rationale: %s",
			s.ID, s.OriginalText, s.SuggestedText, s.Rationale)
	}

	req := llm.NewRequest(applySystemPrompt, fmt.Sprintf(applyUserPrompt, artifactText, strings.Join(blocks, "\n\n"))).
		WithTemperature(0)

	revised, err := e.llm.Invoke(ctx, req)
	if err != nil {
		return "", err
	}

	e.logger.Info("suggestions applied",
		zap.Int("count", len(selected)),
		zap.Int("iteration", len(e.history)),
	)
	return strings.TrimSpace(revised), nil
}

// Compare сравнивает две итерации по 1-based номерам. 0 - значение по умолчанию:
// current = последняя, previous = current-1.
func (e *Engine) Compare(current, previous int) (*domain.ComparisonReport, error) {
	n := len(e.history)
	if n < 2 {
		return nil, domain.ErrInsufficientHistory
	}

	if current == 0 {
		current = n
	}
	if previous == 0 {
		previous = current - 1
	}

	if current < 1 || current > n {
		return nil, fmt.Errorf("%w: current %d", domain.ErrInvalidIteration, current)
	}
	if previous < 1 || previous > n {
		return nil, fmt.Errorf("%w: previous %d", domain.ErrInvalidIteration, previous)
	}

	report := Compare(e.history[previous-1].result, e.history[current-1].result, previous, current)
	return &report, nil
}

// IsReady - result (или последний) набрал threshold включительно. Без результата false.
func (e *Engine) IsReady(result *domain.AnalysisResult, threshold float64) bool {
	if result == nil {
		result = e.LatestResult()
	}
	if result == nil {
		return false
	}
	return result.IsReady(threshold)
}

func (e *Engine) CurrentIteration() int {
	return len(e.history)
}

func (e *Engine) LatestResult() *domain.AnalysisResult {
	if len(e.history) == 0 {
		return nil
	}
	return e.history[len(e.history)-1].result
}

func (e *Engine) LatestArtifact() (string, bool) {
	if len(e.history) == 0 {
		return "", false
	}
	return e.history[len(e.history)-1].artifact, true
}

// Iteration - одна запись истории для чтения снаружи
type Iteration struct {
	Number   int
	Result   *domain.AnalysisResult
	Artifact string
}

// History - копия истории в порядке итераций
func (e *Engine) History() []Iteration {
	out := make([]Iteration, len(e.history))
	for i, s := range e.history {
		out[i] = Iteration{Number: i + 1, Result: s.result, Artifact: s.artifact}
	}
	return out
}
