package stories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
)

const storiesMaxTokens = 8192

var ErrEmptyFeedback = errors.New("empty feedback")

type Deps struct {
	LLM    llm.Client
	Logger *zap.Logger
	// Temperature - для извлечения требований, персон и проверки покрытия
	Temperature float64
	// GenerationTemperature - для генерации и доработки историй
	GenerationTemperature float64
}

// Generator превращает артефакт в эпики и пользовательские истории:
// требования -> персоны -> истории, затем проверка покрытия.
type Generator struct {
	llm            llm.Client
	logger         *zap.Logger
	temperature    float64
	genTemperature float64
}

func New(deps Deps) *Generator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Generator{
		llm:            deps.LLM,
		logger:         deps.Logger,
		temperature:    deps.Temperature,
		genTemperature: deps.GenerationTemperature,
	}
}

type Generation struct {
	Epics    []domain.Epic          `json:"epics" yaml:"epics"`
	Stories  []domain.UserStory     `json:"stories" yaml:"stories"`
	Coverage *domain.CoverageReport `json:"coverage,omitempty" yaml:"coverage,omitempty"`

	requirements []json.RawMessage
}

type requirementsOut struct {
	Requirements []json.RawMessage `json:"requirements"`
}

type personasOut struct {
	Personas []json.RawMessage `json:"personas"`
}

type storiesOut struct {
	Epics   []domain.Epic     `json:"epics"`
	Stories []json.RawMessage `json:"stories"`
}

type coverageOut struct {
	TotalRequirements     *float64 `json:"total_requirements"`
	CoveredRequirements   *float64 `json:"covered_requirements"`
	CoveragePercentage    *float64 `json:"coverage_percentage"`
	UncoveredRequirements []struct {
		RequirementID string `json:"requirement_id"`
		Description   string `json:"description"`
	} `json:"uncovered_requirements"`
}

// Run - полная цепочка с проверкой покрытия. Без единой валидной истории возвращает ErrNoStories.
func (g *Generator) Run(ctx context.Context, text string) (*Generation, error) {
	gen, err := g.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(gen.Stories) == 0 {
		return nil, domain.ErrNoStories
	}

	report, err := g.coverage(ctx, gen.requirements, gen.Stories)
	if err != nil {
		return nil, err
	}
	gen.Coverage = report
	return gen, nil
}

// Generate - три шага без проверки покрытия. Невалидные истории пропускаются.
func (g *Generator) Generate(ctx context.Context, text string) (*Generation, error) {
	if err := domain.ValidateArtifact(text); err != nil {
		return nil, err
	}
	emit := emitterFrom(ctx)

	emit(Event{Step: StepExtracting})
	requirements, err := g.extract(ctx, text)
	if err != nil {
		return nil, err
	}
	emit(Event{Step: StepExtracting, Done: true, Count: len(requirements)})

	emit(Event{Step: StepPersonas})
	reqJSON := marshalList(requirements)
	var personas personasOut
	req := llm.NewRequest(systemPrompt, fmt.Sprintf(personasPrompt, text, reqJSON)).
		WithTemperature(g.temperature)
	if err := llm.InvokeJSON(ctx, g.llm, req, &personas); err != nil {
		return nil, fmt.Errorf("personas: %w", err)
	}
	emit(Event{Step: StepPersonas, Done: true, Count: len(personas.Personas)})

	emit(Event{Step: StepGenerating})
	var out storiesOut
	req = llm.NewRequest(systemPrompt, fmt.Sprintf(storiesPrompt, text, reqJSON, marshalList(personas.Personas))).
		WithTemperature(g.genTemperature).
		WithMaxTokens(storiesMaxTokens)
	if err := llm.InvokeJSON(ctx, g.llm, req, &out); err != nil {
		return nil, fmt.Errorf("stories: %w", err)
	}

	gen := &Generation{
		Epics:        out.Epics,
		Stories:      g.parseStories(out.Stories),
		requirements: requirements,
	}
	if gen.Epics == nil {
		gen.Epics = []domain.Epic{}
	}
	emit(Event{Step: StepGenerating, Done: true, Count: len(gen.Stories)})

	g.logger.Info("stories generated",
		zap.Int("requirements", len(requirements)),
		zap.Int("personas", len(personas.Personas)),
		zap.Int("epics", len(gen.Epics)),
		zap.Int("stories", len(gen.Stories)),
	)
	return gen, nil
}

// ValidateCoverage заново извлекает требования из текста и сверяет их с историями.
func (g *Generator) ValidateCoverage(ctx context.Context, text string, stories []domain.UserStory) (*domain.CoverageReport, error) {
	if err := domain.ValidateArtifact(text); err != nil {
		return nil, err
	}
	requirements, err := g.extract(ctx, text)
	if err != nil {
		return nil, err
	}
	return g.coverage(ctx, requirements, stories)
}

// Refine дорабатывает одну историю по отзыву. Id сохраняется, если модель его потеряла.
func (g *Generator) Refine(ctx context.Context, story domain.UserStory, feedback string) (*domain.UserStory, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, ErrEmptyFeedback
	}
	current, err := json.MarshalIndent(story, "", "  ")
	if err != nil {
		return nil, err
	}

	var refined domain.UserStory
	req := llm.NewRequest(systemPrompt, fmt.Sprintf(refinePrompt, current, feedback)).
		WithTemperature(g.genTemperature)
	if err := llm.InvokeJSON(ctx, g.llm, req, &refined); err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}
	if strings.TrimSpace(refined.ID) == "" {
		refined.ID = story.ID
	}
	if err := refined.Validate(); err != nil {
		return nil, err
	}
	return &refined, nil
}

func (g *Generator) extract(ctx context.Context, text string) ([]json.RawMessage, error) {
	var out requirementsOut
	req := llm.NewRequest(systemPrompt, fmt.Sprintf(extractPrompt, text)).
		WithTemperature(g.temperature)
	if err := llm.InvokeJSON(ctx, g.llm, req, &out); err != nil {
		return nil, fmt.Errorf("requirements: %w", err)
	}
	return out.Requirements, nil
}

func (g *Generator) coverage(ctx context.Context, requirements []json.RawMessage, stories []domain.UserStory) (*domain.CoverageReport, error) {
	emit := emitterFrom(ctx)
	emit(Event{Step: StepCoverage})

	storiesJSON, err := json.MarshalIndent(stories, "", "  ")
	if err != nil {
		return nil, err
	}
	var out coverageOut
	req := llm.NewRequest(systemPrompt, fmt.Sprintf(coveragePrompt, marshalList(requirements), storiesJSON)).
		WithTemperature(g.temperature)
	if err := llm.InvokeJSON(ctx, g.llm, req, &out); err != nil {
		return nil, fmt.Errorf("coverage: %w", err)
	}

	report := buildCoverage(out, len(requirements))
	emit(Event{Step: StepCoverage, Done: true, Count: report.CoveredRequirements})
	return report, nil
}

// buildCoverage доверяет счетчикам модели, но процент пересчитывает, если модель его опустила
func buildCoverage(out coverageOut, extracted int) *domain.CoverageReport {
	report := &domain.CoverageReport{
		TotalRequirements:     extracted,
		UncoveredRequirements: []string{},
	}
	if out.TotalRequirements != nil {
		report.TotalRequirements = int(*out.TotalRequirements)
	}
	for _, u := range out.UncoveredRequirements {
		id := strings.TrimSpace(u.RequirementID)
		if id == "" {
			id = strings.TrimSpace(u.Description)
		}
		if id != "" {
			report.UncoveredRequirements = append(report.UncoveredRequirements, id)
		}
	}

	if out.CoveredRequirements != nil {
		report.CoveredRequirements = int(*out.CoveredRequirements)
	} else {
		report.CoveredRequirements = report.TotalRequirements - len(report.UncoveredRequirements)
	}
	report.CoveredRequirements = max(0, min(report.CoveredRequirements, report.TotalRequirements))

	switch {
	case out.CoveragePercentage != nil:
		report.CoveragePercentage = domain.ClampScore(*out.CoveragePercentage)
	case report.TotalRequirements > 0:
		report.CoveragePercentage = float64(report.CoveredRequirements) / float64(report.TotalRequirements) * 100
	}
	return report
}

func (g *Generator) parseStories(raw []json.RawMessage) []domain.UserStory {
	stories := make([]domain.UserStory, 0, len(raw))
	for i, item := range raw {
		var s domain.UserStory
		if err := json.Unmarshal(item, &s); err != nil {
			g.logger.Warn("skipping malformed story", zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := s.Validate(); err != nil {
			g.logger.Warn("skipping invalid story", zap.Int("index", i), zap.Error(err))
			continue
		}
		stories = append(stories, s)
	}
	return stories
}

func marshalList(items []json.RawMessage) string {
	if items == nil {
		items = []json.RawMessage{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
