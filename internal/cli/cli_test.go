package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
	"github.com/kitbuilder587/ba-analyser/internal/llm/mock"
	"github.com/kitbuilder587/ba-analyser/internal/metrics"
)

// scriptedLLM: оценки синтеза идут по очереди, последняя повторяется
type scriptedLLM struct {
	mu     sync.Mutex
	scores []float64
	n      int
}

func (s *scriptedLLM) handle(req llm.Request) (string, error) {
	prompt := mock.Prompt(req)
	switch {
	case strings.Contains(req.System, "Agile Product Owner"):
		return storyResponse(prompt), nil
	case strings.Contains(req.System, "classify a document"):
		return `{"artifact_type": "business_process", "confidence": 0.9, "rationale": "steps and roles"}`, nil
	case strings.Contains(req.System, "Return ONLY the revised artifact text"):
		return "  revised artifact  ", nil
	case strings.Contains(prompt, "<dimension_results>"):
		s.mu.Lock()
		idx := min(s.n, len(s.scores)-1)
		s.n++
		s.mu.Unlock()
		return fmt.Sprintf(`{
  "overall_score": %v,
  "executive_summary": "summary %d",
  "dimension_scores": [{"name": "Clarity", "score": %v}],
  "critical_issues": [{"id": "ISSUE-00%d", "severity": "WARNING", "description": "vague"}],
  "suggestions": [{"id": "SUG-001", "original_text": "fast", "suggested_text": "within 2s", "rationale": "measurable"}]
}`, s.scores[idx], idx+1, s.scores[idx], idx+1), nil
	}
	return `{"score": 60, "findings": ["ok"]}`, nil
}

// storyResponse - ответы цепочки генерации историй по маркерам промпта
func storyResponse(prompt string) string {
	switch {
	case strings.Contains(prompt, "<stories>"):
		return `{"total_requirements": 2, "covered_requirements": 1, "coverage_percentage": 50,
  "uncovered_requirements": [{"requirement_id": "REQ-002"}]}`
	case strings.Contains(prompt, "<personas>"):
		return `{"epics": [{"name": "Ordering", "description": "orders"}], "stories": [
  {"id": "US-001", "epic": "Ordering", "title": "Place order", "persona": "customer", "goal": "to order",
   "benefit": "I get goods", "acceptance_criteria": ["order is created"], "priority": "Must",
   "estimate_complexity": "M", "source_requirement_ids": ["REQ-001"]},
  {"id": "US-002", "priority": "Never", "estimate_complexity": "M"}]}`
	case strings.Contains(prompt, "<requirements>"):
		return `{"personas": [{"name": "customer"}]}`
	}
	return `{"requirements": [{"id": "REQ-001"}, {"id": "REQ-002"}]}`
}

// fixedPrompter всегда выбирает одно и то же действие
type fixedPrompter struct {
	act   action
	ids   []string
	calls int
}

func (p *fixedPrompter) Action([]domain.Suggestion) (action, error) {
	p.calls++
	return p.act, nil
}

func (p *fixedPrompter) ChooseIDs([]domain.Suggestion) ([]string, error) {
	return p.ids, nil
}

type cliEnv struct {
	llm    *mock.Client
	opts   options
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newCLIEnv(t *testing.T, scores ...float64) *cliEnv {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("LLM_RETRY_ATTEMPTS", "1")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CI", "1")

	script := &scriptedLLM{scores: scores}
	env := &cliEnv{llm: mock.New().WithHandler(script.handle)}
	env.opts = options{
		llm:     env.llm,
		metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	return env
}

func (e *cliEnv) run(args ...string) error {
	e.stdout.Reset()
	e.stderr.Reset()
	cmd := newRootCmd(e.opts)
	cmd.SetArgs(args)
	cmd.SetOut(&e.stdout)
	cmd.SetErr(&e.stderr)
	return cmd.ExecuteContext(context.Background())
}

func writeArtifact(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.md")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestAnalyseCmd_Text(t *testing.T) {
	env := newCLIEnv(t, 85)
	path := writeArtifact(t, "As a user I want fast search")

	if err := env.run("analyse", path, "--type", "story"); err != nil {
		t.Fatalf("analyse: %v", err)
	}

	out := env.stdout.String()
	for _, want := range []string{"user_story", "85.0/100", "READY", "ISSUE-001", "SUG-001", "within 2s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "NOT READY") {
		t.Errorf("score 85 should be ready at threshold 80:\n%s", out)
	}
	if env.llm.HasCallWithSystem("classify a document") {
		t.Error("explicit --type should skip detection")
	}
	if !strings.Contains(env.stderr.String(), "synthesising results") {
		t.Errorf("progress lines missing in stderr: %s", env.stderr.String())
	}
}

func TestAnalyseCmd_JSONWithDetection(t *testing.T) {
	env := newCLIEnv(t, 42)
	path := writeArtifact(t, "1. Clerk receives the order\n2. Manager approves it")

	if err := env.run("analyse", path, "-o", "json"); err != nil {
		t.Fatalf("analyse: %v", err)
	}

	var res domain.AnalysisResult
	if err := json.Unmarshal(env.stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, env.stdout.String())
	}
	if res.ArtifactType != domain.ArtifactProcess {
		t.Errorf("ArtifactType = %v, want %v", res.ArtifactType, domain.ArtifactProcess)
	}
	if res.OverallScore != 42 {
		t.Errorf("OverallScore = %v, want 42", res.OverallScore)
	}
	if res.IterationNumber != 1 {
		t.Errorf("IterationNumber = %v, want 1", res.IterationNumber)
	}
	if !strings.Contains(env.stderr.String(), "Detected type: business_process") {
		t.Errorf("stderr = %q, want detection line", env.stderr.String())
	}
}

func TestAnalyseCmd_YAMLFromStdin(t *testing.T) {
	env := newCLIEnv(t, 70)
	env.opts.stdin = strings.NewReader("The system shall export reports")

	if err := env.run("analyse", "-", "-t", "requirements", "-o", "yaml"); err != nil {
		t.Fatalf("analyse: %v", err)
	}

	var res domain.AnalysisResult
	if err := yaml.Unmarshal(env.stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if res.ArtifactType != domain.ArtifactRequirements {
		t.Errorf("ArtifactType = %v, want %v", res.ArtifactType, domain.ArtifactRequirements)
	}
	if res.OverallScore != 70 {
		t.Errorf("OverallScore = %v, want 70", res.OverallScore)
	}
}

func TestAnalyseCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		args    []string
		wantErr error
	}{
		{name: "empty artifact", text: "   \n", wantErr: domain.ErrEmptyArtifact},
		{name: "bad type", text: "text", args: []string{"--type", "novel"}, wantErr: domain.ErrInvalidArtifactType},
		{name: "bad threshold", text: "text", args: []string{"--threshold", "150"}, wantErr: domain.ErrInvalidThreshold},
		{name: "bad format", text: "text", args: []string{"-o", "xml"}, wantErr: errUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t, 50)
			path := writeArtifact(t, tt.text)

			err := env.run(append([]string{"analyse", path}, tt.args...)...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnalyseCmd_MissingFile(t *testing.T) {
	env := newCLIEnv(t, 50)

	err := env.run("analyse", filepath.Join(t.TempDir(), "nope.md"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
	if env.llm.Calls() != 0 {
		t.Errorf("LLM calls = %d, want 0", env.llm.Calls())
	}
}

func TestAnalyseCmd_LLMFailure(t *testing.T) {
	env := newCLIEnv(t, 50)
	env.llm.WithHandler(nil).WithError(llm.ErrAuthFailed)
	path := writeArtifact(t, "text")

	err := env.run("analyse", path, "-t", "story")
	if !errors.Is(err, llm.ErrAuthFailed) {
		t.Errorf("error = %v, want %v", err, llm.ErrAuthFailed)
	}
}

func TestDetectCmd(t *testing.T) {
	env := newCLIEnv(t, 50)
	path := writeArtifact(t, "1. Clerk receives the order")

	if err := env.run("detect", path); err != nil {
		t.Fatalf("detect: %v", err)
	}
	out := env.stdout.String()
	if !strings.Contains(out, "business_process (confidence 0.90)") {
		t.Errorf("output = %q, want detected type", out)
	}
	if !strings.Contains(out, "steps and roles") {
		t.Errorf("output = %q, want rationale", out)
	}
}

func TestCompareCmd(t *testing.T) {
	env := newCLIEnv(t, 50, 75)
	first := writeArtifact(t, "draft")
	second := writeArtifact(t, "better draft")

	if err := env.run("compare", first, second, "-t", "story", "-o", "json"); err != nil {
		t.Fatalf("compare: %v", err)
	}

	var got comparison
	if err := json.Unmarshal(env.stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	c := got.Comparison
	if c.ScoreDelta != 25 {
		t.Errorf("ScoreDelta = %v, want 25", c.ScoreDelta)
	}
	if c.PreviousIteration != 1 || c.CurrentIteration != 2 {
		t.Errorf("iterations = %d/%d, want 1/2", c.PreviousIteration, c.CurrentIteration)
	}
	if len(c.ImprovedDimensions) != 1 || c.ImprovedDimensions[0] != "Clarity" {
		t.Errorf("ImprovedDimensions = %v, want [Clarity]", c.ImprovedDimensions)
	}
	if len(c.ResolvedIssues) != 1 || c.ResolvedIssues[0] != "ISSUE-001" {
		t.Errorf("ResolvedIssues = %v, want [ISSUE-001]", c.ResolvedIssues)
	}
	if len(c.NewIssues) != 1 || c.NewIssues[0] != "ISSUE-002" {
		t.Errorf("NewIssues = %v, want [ISSUE-002]", c.NewIssues)
	}
	if got.Result2.IterationNumber != 2 {
		t.Errorf("Result2.IterationNumber = %d, want 2", got.Result2.IterationNumber)
	}
}

func TestIterateCmd_AutoUntilReady(t *testing.T) {
	env := newCLIEnv(t, 60, 90)
	path := writeArtifact(t, "As a user I want fast search")

	if err := env.run("iterate", path, "-t", "story", "--auto", "--save"); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	out := env.stdout.String()
	for _, want := range []string{"Artifact is ready", "60.0 -> 90.0 (+30.0)", "1:60.0 2:90.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved artifact: %v", err)
	}
	if string(saved) != "revised artifact\n" {
		t.Errorf("saved artifact = %q, want %q", saved, "revised artifact\n")
	}

	apply := 0
	for _, req := range env.llm.Requests() {
		if strings.Contains(req.System, "Return ONLY the revised artifact text") {
			apply++
			if req.Temperature == nil || *req.Temperature != 0 {
				t.Errorf("apply temperature = %v, want 0", req.Temperature)
			}
		}
	}
	if apply != 1 {
		t.Errorf("apply calls = %d, want 1", apply)
	}
}

func TestIterateCmd_MaxIterations(t *testing.T) {
	env := newCLIEnv(t, 50)
	path := writeArtifact(t, "draft")

	if err := env.run("iterate", path, "-t", "story", "--auto", "--max-iterations", "2"); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	out := env.stdout.String()
	if !strings.Contains(out, "Stopped after 2 iterations") {
		t.Errorf("output = %s, want stop message", out)
	}
	if !strings.Contains(out, "2 iteration(s)") {
		t.Errorf("output = %s, want history of 2 iterations", out)
	}

	saved, _ := os.ReadFile(path)
	if string(saved) != "draft" {
		t.Errorf("file changed without --save: %q", saved)
	}
}

func TestIterateCmd_Quit(t *testing.T) {
	env := newCLIEnv(t, 50)
	p := &fixedPrompter{act: actionQuit}
	env.opts.prompt = p
	path := writeArtifact(t, "draft")

	if err := env.run("iterate", path, "-t", "story"); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("prompter calls = %d, want 1", p.calls)
	}
	if !strings.Contains(env.stdout.String(), "1 iteration(s)") {
		t.Errorf("output = %s, want single iteration", env.stdout.String())
	}
	if env.llm.HasCallWithSystem("Return ONLY the revised artifact text") {
		t.Error("quit should not apply suggestions")
	}
}

func TestIterateCmd_Reload(t *testing.T) {
	env := newCLIEnv(t, 50, 85)
	p := &fixedPrompter{act: actionReload}
	env.opts.prompt = p
	path := writeArtifact(t, "draft")

	if err := env.run("iterate", path, "-t", "story"); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "Artifact is ready") {
		t.Errorf("output = %s, want ready after reload", env.stdout.String())
	}
	if env.llm.HasCallWithSystem("Return ONLY the revised artifact text") {
		t.Error("reload should not call the rewrite prompt")
	}
}

func TestIterateCmd_ChooseUnknownIDs(t *testing.T) {
	env := newCLIEnv(t, 50, 85)
	env.opts.prompt = &fixedPrompter{act: actionChoose, ids: []string{"SUG-404"}}
	path := writeArtifact(t, "draft")

	if err := env.run("iterate", path, "-t", "story", "--save"); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if env.llm.HasCallWithSystem("Return ONLY the revised artifact text") {
		t.Error("unknown ids should not reach the LLM")
	}
	saved, _ := os.ReadFile(path)
	if string(saved) != "draft\n" {
		t.Errorf("saved artifact = %q, want unchanged text", saved)
	}
}

func TestIterateCmd_StdinNeedsAuto(t *testing.T) {
	env := newCLIEnv(t, 50)
	env.opts.stdin = strings.NewReader("draft")

	if err := env.run("iterate", "-", "-t", "story"); err == nil {
		t.Error("iterate from stdin without --auto should fail")
	}
}

func TestIterateAndArchive_SQLite(t *testing.T) {
	env := newCLIEnv(t, 60, 90)
	t.Setenv("STORE_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "archive.db"))
	path := writeArtifact(t, "draft")

	if err := env.run("iterate", path, "-t", "story", "--auto"); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "Archived in sqlite") {
		t.Errorf("output = %s, want archive hint", env.stdout.String())
	}

	if err := env.run("archive", "-o", "json"); err != nil {
		t.Fatalf("archive list: %v", err)
	}
	var ids []string
	if err := json.Unmarshal(env.stdout.Bytes(), &ids); err != nil {
		t.Fatalf("decode ids: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("sessions = %v, want 1", ids)
	}

	if err := env.run("archive", ids[0]); err != nil {
		t.Fatalf("archive show: %v", err)
	}
	out := env.stdout.String()
	if !strings.Contains(out, "#1") || !strings.Contains(out, "#2") {
		t.Errorf("output = %s, want both iterations", out)
	}

	if err := env.run("archive", ids[0], "--purge"); err != nil {
		t.Fatalf("archive purge: %v", err)
	}
	err := env.run("archive", ids[0])
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("error after purge = %v, want %v", err, domain.ErrSessionNotFound)
	}
}

func TestArchiveCmd_MemoryStore(t *testing.T) {
	env := newCLIEnv(t, 50)

	if err := env.run("archive"); !errors.Is(err, errMemoryArchive) {
		t.Errorf("error = %v, want %v", err, errMemoryArchive)
	}
}

func TestStoriesCmd_Text(t *testing.T) {
	env := newCLIEnv(t, 50)
	path := writeArtifact(t, "REQ-001 Customer places an order\nREQ-002 Page loads fast")

	if err := env.run("generate-stories", path); err != nil {
		t.Fatalf("generate-stories: %v", err)
	}

	out := env.stdout.String()
	for _, want := range []string{"1 epic(s), 1 stories", "Ordering", "US-001 [Must, M] Place order",
		"As a customer, I want to order, so that I get goods", "- order is created", "covers: REQ-001",
		"Coverage: 1/2 requirements (50%)", "uncovered:  REQ-002"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "US-002") {
		t.Errorf("invalid story should be skipped:\n%s", out)
	}
	if !strings.Contains(env.stderr.String(), "Generating stories: 1") {
		t.Errorf("progress lines missing in stderr: %s", env.stderr.String())
	}
}

func TestStoriesCmd_JSONNoCoverage(t *testing.T) {
	env := newCLIEnv(t, 50)
	path := writeArtifact(t, "REQ-001 Customer places an order")

	if err := env.run("generate-stories", path, "--no-coverage", "-o", "json"); err != nil {
		t.Fatalf("generate-stories: %v", err)
	}

	var got struct {
		Stories  []domain.UserStory     `json:"stories"`
		Coverage *domain.CoverageReport `json:"coverage"`
	}
	if err := json.Unmarshal(env.stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, env.stdout.String())
	}
	if len(got.Stories) != 1 || got.Stories[0].ID != "US-001" {
		t.Errorf("Stories = %+v, want US-001", got.Stories)
	}
	if got.Coverage != nil {
		t.Errorf("Coverage = %+v, want none with --no-coverage", got.Coverage)
	}
	if calls := env.llm.Calls(); calls != 3 {
		t.Errorf("LLM calls = %d, want 3", calls)
	}
}

func TestStoriesCmd_NoStories(t *testing.T) {
	env := newCLIEnv(t, 50)
	env.llm.WithHandler(func(req llm.Request) (string, error) {
		if strings.Contains(mock.Prompt(req), "<personas>") {
			return `{"epics": [], "stories": []}`, nil
		}
		return storyResponse(mock.Prompt(req)), nil
	})
	path := writeArtifact(t, "REQ-001 Customer places an order")

	err := env.run("generate-stories", path)
	if !errors.Is(err, domain.ErrNoStories) {
		t.Errorf("generate-stories error = %v, want ErrNoStories", err)
	}
}

func TestConfigCmd(t *testing.T) {
	env := newCLIEnv(t, 50)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-secret-1234")
	t.Setenv("ANALYSIS_QUALITY_THRESHOLD", "75")

	if err := env.run("config", "-o", "json"); err != nil {
		t.Fatalf("config: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(env.stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got["ANTHROPIC_API_KEY"] != "****1234" {
		t.Errorf("ANTHROPIC_API_KEY = %q, want masked", got["ANTHROPIC_API_KEY"])
	}
	if got["ANALYSIS_QUALITY_THRESHOLD"] != "75" {
		t.Errorf("ANALYSIS_QUALITY_THRESHOLD = %q, want 75", got["ANALYSIS_QUALITY_THRESHOLD"])
	}
	if strings.Contains(env.stdout.String(), "sk-ant-secret") {
		t.Error("config output leaks the API key")
	}
}

func TestConfigCmd_InvalidProvider(t *testing.T) {
	env := newCLIEnv(t, 50)
	t.Setenv("LLM_PROVIDER", "gigachat")

	if err := env.run("config"); err == nil {
		t.Error("unknown provider should fail config loading")
	}
}

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"SUG-001", []string{"SUG-001"}},
		{"sug-001, sug-002", []string{"SUG-001", "SUG-002"}},
		{"SUG-001 SUG-003,,", []string{"SUG-001", "SUG-003"}},
		{"  ", nil},
	}

	for _, tt := range tests {
		got := splitIDs(tt.input)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("splitIDs(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAutoPrompter(t *testing.T) {
	p := autoPrompter{}

	act, err := p.Action(nil)
	if err != nil || act != actionQuit {
		t.Errorf("Action(nil) = %v, %v, want quit", act, err)
	}

	suggestions := []domain.Suggestion{{ID: "SUG-001"}, {ID: "SUG-002"}}
	act, _ = p.Action(suggestions)
	if act != actionApplyAll {
		t.Errorf("Action() = %v, want apply all", act)
	}
	ids, _ := p.ChooseIDs(suggestions)
	if strings.Join(ids, ",") != "SUG-001,SUG-002" {
		t.Errorf("ChooseIDs() = %v, want all ids", ids)
	}
}
