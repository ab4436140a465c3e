package analyser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
	"github.com/kitbuilder587/ba-analyser/internal/llm/mock"
)

const fullSynthesis = `{
  "overall_score": 105,
  "executive_summary": "Solid start.",
  "dimension_scores": [
    {"name": "Completeness", "score": 70, "severity": "warning", "top_findings": ["no NFRs"]},
    {"name": "Quality", "score": "55", "severity": "bogus"}
  ],
  "critical_issues": [
    {"id": "ISSUE-001", "dimension": "Completeness", "severity": "CRITICAL", "description": "Missing NFRs"},
    {"dimension": "Quality", "severity": "loud", "description": "Vague wording"}
  ],
  "suggestions": [
    {"id": "SUG-001", "original_text": "fast", "suggested_text": "under 2 seconds", "rationale": "measurable"},
    {"original_text": "etc.", "suggested_text": "", "rationale": "be explicit"}
  ]
}`

func dimensionKey(p Profile, prompt string) string {
	for _, k := range p.Keys() {
		if strings.Contains(prompt, `"dimension": "`+k+`"`) {
			return k
		}
	}
	return ""
}

// scriptedLLM отвечает по содержимому промпта, порядок вызовов не важен
func scriptedLLM(p Profile, scores map[string]float64, synthesis string) *mock.Client {
	return mock.New().WithHandler(func(req llm.Request) (string, error) {
		prompt := mock.Prompt(req)
		if strings.Contains(prompt, "<dimension_results>") {
			return synthesis, nil
		}
		key := dimensionKey(p, prompt)
		if key == "" {
			return "", fmt.Errorf("unexpected prompt")
		}
		return fmt.Sprintf(`{"dimension": %q, "score": %v, "summary": "summary of %s"}`, key, scores[key], key), nil
	})
}

func TestLLMAnalyser_Analyse(t *testing.T) {
	p := ForType(domain.ArtifactRequirements)
	client := scriptedLLM(p, map[string]float64{}, "```json\n"+fullSynthesis+"\n```")
	a := New(Deps{LLM: client, Profile: p, Logger: zap.NewNop(), Temperature: 0.1})

	res, err := a.Analyse(context.Background(), "REQ-001 The system should be fast.", 3)
	if err != nil {
		t.Fatalf("Analyse() error = %v", err)
	}

	if client.Calls() != len(p.Dimensions)+1 {
		t.Errorf("calls = %d, want %d", client.Calls(), len(p.Dimensions)+1)
	}
	if res.ArtifactType != domain.ArtifactRequirements {
		t.Errorf("ArtifactType = %v, want requirements_document", res.ArtifactType)
	}
	if res.IterationNumber != 3 {
		t.Errorf("IterationNumber = %d, want 3", res.IterationNumber)
	}
	if res.OverallScore != 100 {
		t.Errorf("OverallScore = %v, want clamped 100", res.OverallScore)
	}
	if res.ExecutiveSummary != "Solid start." {
		t.Errorf("ExecutiveSummary = %q", res.ExecutiveSummary)
	}

	if len(res.Dimensions) != 2 {
		t.Fatalf("Dimensions = %d, want 2", len(res.Dimensions))
	}
	if res.Dimensions[0].Severity != domain.SeverityWarning {
		t.Errorf("dimension severity = %v, want WARNING", res.Dimensions[0].Severity)
	}
	if res.Dimensions[1].Score != 55 || res.Dimensions[1].Severity != domain.SeverityInfo {
		t.Errorf("dimension[1] = %+v, want score 55 severity INFO", res.Dimensions[1])
	}
	if res.Dimensions[1].Findings == nil {
		t.Error("missing findings should be an empty slice")
	}

	if len(res.Issues) != 2 {
		t.Fatalf("Issues = %d, want 2", len(res.Issues))
	}
	if res.Issues[1].ID != "ISSUE-???" || res.Issues[1].Severity != domain.SeverityWarning {
		t.Errorf("defaulted issue = %+v", res.Issues[1])
	}

	if len(res.Suggestions) != 2 {
		t.Fatalf("Suggestions = %d, want 2", len(res.Suggestions))
	}
	if res.Suggestions[1].ID != "SUG-???" {
		t.Errorf("defaulted suggestion id = %q, want SUG-???", res.Suggestions[1].ID)
	}
}

func TestLLMAnalyser_RequestParameters(t *testing.T) {
	p := ForType(domain.ArtifactUserStory)
	client := scriptedLLM(p, map[string]float64{}, fullSynthesis)
	a := New(Deps{LLM: client, Profile: p, Temperature: 0.1})

	if _, err := a.Analyse(context.Background(), "As a clerk I want...", 1); err != nil {
		t.Fatalf("Analyse() error = %v", err)
	}

	for _, req := range client.Requests() {
		if req.System != p.SystemPrompt {
			t.Error("request without profile system prompt")
		}
		if req.Temperature == nil || *req.Temperature != 0.1 {
			t.Errorf("temperature = %v, want 0.1", req.Temperature)
		}
		isSynthesis := strings.Contains(mock.Prompt(req), "<dimension_results>")
		if isSynthesis && req.MaxTokens != 8192 {
			t.Errorf("synthesis MaxTokens = %d, want 8192", req.MaxTokens)
		}
		if !isSynthesis && req.MaxTokens != 0 {
			t.Errorf("dimension MaxTokens = %d, want provider default", req.MaxTokens)
		}
	}
}

func TestLLMAnalyser_FallbackDimensions(t *testing.T) {
	p := ForType(domain.ArtifactProcess)
	scores := map[string]float64{
		"structure":              75,
		"decision_points":        50,
		"roles_responsibilities": 10,
		"business_alignment":     70,
	}
	client := scriptedLLM(p, scores, `{"overall_score": 52}`)
	a := New(Deps{LLM: client, Profile: p, Concurrency: 4})

	res, err := a.Analyse(context.Background(), "Step 1: receive order", 1)
	if err != nil {
		t.Fatalf("Analyse() error = %v", err)
	}

	want := []struct {
		name     string
		score    float64
		severity domain.Severity
	}{
		{"Structure", 75, domain.SeverityInfo},
		{"Decision Points", 50, domain.SeverityWarning},
		{"Roles & Responsibilities", 10, domain.SeverityCritical},
		{"Business Alignment", 70, domain.SeverityInfo},
	}
	if len(res.Dimensions) != len(want) {
		t.Fatalf("Dimensions = %d, want %d", len(res.Dimensions), len(want))
	}
	for i, w := range want {
		got := res.Dimensions[i]
		if got.Name != w.name || got.Score != w.score || got.Severity != w.severity {
			t.Errorf("dimension[%d] = %+v, want %s %v %s", i, got, w.name, w.score, w.severity)
		}
		if len(got.Findings) != 1 || !strings.HasPrefix(got.Findings[0], "summary of") {
			t.Errorf("dimension[%d] findings = %v, want summary", i, got.Findings)
		}
	}
	if len(res.Issues) != 0 || res.Issues == nil {
		t.Errorf("Issues = %v, want empty non-nil", res.Issues)
	}
}

func TestLLMAnalyser_DimensionFailureAborts(t *testing.T) {
	p := ForType(domain.ArtifactRequirements)
	client := mock.New().WithResponses(
		`{"dimension": "completeness", "score": 60}`,
		`not json`,
	)
	a := New(Deps{LLM: client, Profile: p})

	res, err := a.Analyse(context.Background(), "text", 1)
	if err == nil {
		t.Fatal("Analyse() expected error")
	}
	if res != nil {
		t.Error("Analyse() returned partial result")
	}
	if !errors.Is(err, llm.ErrInvalidJSON) {
		t.Errorf("error = %v, want ErrInvalidJSON", err)
	}
	if !strings.Contains(err.Error(), "dimension consistency") {
		t.Errorf("error = %v, want dimension key", err)
	}
	if client.Calls() != 2 {
		t.Errorf("calls = %d, want 2 (no calls after failure)", client.Calls())
	}
}

func TestLLMAnalyser_SynthesisFailure(t *testing.T) {
	p := ForType(domain.ArtifactUserStory)
	client := mock.New().WithHandler(func(req llm.Request) (string, error) {
		if strings.Contains(mock.Prompt(req), "<dimension_results>") {
			return "", llm.ErrRateLimit
		}
		return `{"score": 50}`, nil
	})
	a := New(Deps{LLM: client, Profile: p})

	_, err := a.Analyse(context.Background(), "text", 1)
	if !errors.Is(err, llm.ErrRateLimit) {
		t.Errorf("error = %v, want ErrRateLimit", err)
	}
}

func TestLLMAnalyser_Progress(t *testing.T) {
	p := ForType(domain.ArtifactRequirements)
	client := scriptedLLM(p, map[string]float64{"completeness": 42}, fullSynthesis)
	a := New(Deps{LLM: client, Profile: p, Concurrency: 3})

	var mu sync.Mutex
	var events []Event
	ctx := WithProgress(context.Background(), func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	if _, err := a.Analyse(ctx, "text", 1); err != nil {
		t.Fatalf("Analyse() error = %v", err)
	}

	counts := map[EventKind]int{}
	for _, e := range events {
		counts[e.Kind]++
		if e.Kind == EventDimensionComplete && e.Dimension == "completeness" && e.Score != 42 {
			t.Errorf("completeness score event = %v, want 42", e.Score)
		}
		if e.Total != len(p.Dimensions) {
			t.Errorf("event total = %d, want %d", e.Total, len(p.Dimensions))
		}
	}
	if counts[EventDimensionStarted] != 5 || counts[EventDimensionComplete] != 5 || counts[EventSynthesising] != 1 {
		t.Errorf("event counts = %v", counts)
	}
	if events[len(events)-1].Kind != EventSynthesising {
		t.Errorf("last event = %v, want synthesising", events[len(events)-1].Kind)
	}
}

type fakeRecorder struct {
	status string
	score  float64
	calls  int
}

func (r *fakeRecorder) RecordAnalysis(_ string, status string, score float64, _ time.Duration) {
	r.status, r.score = status, score
	r.calls++
}

func TestLLMAnalyser_RecordsMetrics(t *testing.T) {
	p := ForType(domain.ArtifactRequirements)
	rec := &fakeRecorder{}

	a := New(Deps{LLM: scriptedLLM(p, nil, `{"overall_score": 64}`), Profile: p, Metrics: rec})
	if _, err := a.Analyse(context.Background(), "text", 1); err != nil {
		t.Fatalf("Analyse() error = %v", err)
	}
	if rec.status != "ok" || rec.score != 64 {
		t.Errorf("recorded (%s, %v), want (ok, 64)", rec.status, rec.score)
	}

	failing := New(Deps{LLM: mock.New().WithError(llm.ErrAuthFailed), Profile: p, Metrics: rec})
	failing.Analyse(context.Background(), "text", 1)
	if rec.status != "error" || rec.calls != 2 {
		t.Errorf("recorded (%s, calls %d), want (error, 2)", rec.status, rec.calls)
	}
}

func TestForType(t *testing.T) {
	tests := []struct {
		in       domain.ArtifactType
		wantType domain.ArtifactType
		wantDims int
	}{
		{domain.ArtifactRequirements, domain.ArtifactRequirements, 5},
		{domain.ArtifactProcess, domain.ArtifactProcess, 4},
		{domain.ArtifactUserStory, domain.ArtifactUserStory, 4},
		{domain.ArtifactUseCase, domain.ArtifactRequirements, 5},
		{domain.ArtifactUnknown, domain.ArtifactRequirements, 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			p := ForType(tt.in)
			if p.Type != tt.wantType {
				t.Errorf("ForType(%s).Type = %s, want %s", tt.in, p.Type, tt.wantType)
			}
			if len(p.Dimensions) != tt.wantDims {
				t.Errorf("ForType(%s) dims = %d, want %d", tt.in, len(p.Dimensions), tt.wantDims)
			}
		})
	}
}

func TestProfiles_WeightsSumToOne(t *testing.T) {
	for typ, p := range profiles {
		sum := 0.0
		for _, d := range p.Dimensions {
			sum += d.Weight
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("%s weights sum = %v, want 1", typ, sum)
		}
	}
}

func TestProfile_DisplayName(t *testing.T) {
	p := ForType(domain.ArtifactRequirements)
	if got := p.DisplayName("context_scope_clarity"); got != "Context & Scope Clarity" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := p.DisplayName("nope"); got != "nope" {
		t.Errorf("DisplayName(unknown) = %q, want key back", got)
	}
}

func TestSynthesisPrompt_ListsWeights(t *testing.T) {
	p := ForType(domain.ArtifactUserStory)
	prompt := synthesisPrompt(p, "{}", "artifact")

	for _, want := range []string{"Acceptance Criteria: 35%", "INVEST Principles: 25%", "across 4 dimensions"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("synthesis prompt missing %q", want)
		}
	}
}

func TestFactory_ForType(t *testing.T) {
	f := NewFactory(Deps{LLM: mock.New(), Temperature: 0.2})
	a := f.ForType(domain.ArtifactProcess)
	if a.Profile().Type != domain.ArtifactProcess {
		t.Errorf("Profile().Type = %s, want business_process", a.Profile().Type)
	}
}
