package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/session"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

func TestFormatOutcome(t *testing.T) {
	o := &session.Outcome{
		Result: &domain.AnalysisResult{
			OverallScore:    62.5,
			IterationNumber: 2,
			Dimensions: []domain.DimensionScore{
				{Name: "Completeness", Score: 80},
				{Name: "Quality & <Clarity>", Score: 30},
			},
			Issues:      []domain.Issue{{ID: "ISSUE-001", Severity: domain.SeverityCritical, Description: "a < b"}},
			Suggestions: []domain.Suggestion{{ID: "SUG-001"}},
		},
		Comparison: &domain.ComparisonReport{
			PreviousIteration: 1,
			CurrentIteration:  2,
			PreviousScore:     70,
			CurrentScore:      62.5,
			ScoreDelta:        -7.5,
			NewIssues:         []string{"ISSUE-001"},
		},
	}

	got := FormatOutcome(o, 80)

	for _, want := range []string{
		"Итерация 2: 62.5 / 100",
		"не хватает 17.5",
		"● Completeness: 80",
		"○ Quality &amp; &lt;Clarity&gt;: 30",
		"[CRITICAL] ISSUE-001 a &lt; b",
		"(-7.5)",
		"Новые проблемы: ISSUE-001",
		"Предложений: 1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatOutcome() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Улучшились") {
		t.Error("empty lists must be omitted")
	}
}

func TestFormatOutcome_Ready(t *testing.T) {
	o := &session.Outcome{
		Result: &domain.AnalysisResult{OverallScore: 80, IterationNumber: 1, Suggestions: []domain.Suggestion{{ID: "SUG-001"}}},
		Ready:  true,
	}

	got := FormatOutcome(o, 80)
	if !strings.Contains(got, "Готово") {
		t.Errorf("ready outcome = %q", got)
	}
	if strings.Contains(got, "/suggestions") {
		t.Error("ready outcome should not push suggestions")
	}
}

func TestFormatSuggestions(t *testing.T) {
	if got := FormatSuggestions(nil); got != "Предложений нет." {
		t.Errorf("FormatSuggestions(nil) = %q", got)
	}

	got := FormatSuggestions([]domain.Suggestion{
		{ID: "SUG-001", OriginalText: "fast", SuggestedText: "<2s", Rationale: "measurable"},
		{ID: "SUG-002", SuggestedText: "add actor"},
	})
	for _, want := range []string{"<b>SUG-001</b>", "Было: fast", "Стало: &lt;2s", "<i>measurable</i>", "<b>SUG-002</b>", "/apply all"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatSuggestions() missing %q in:\n%s", want, got)
		}
	}
	if strings.Count(got, "Было:") != 1 {
		t.Error("empty original text should be skipped")
	}
}

func TestFormatStatus(t *testing.T) {
	got := FormatStatus(session.Snapshot{
		ArtifactType: domain.ArtifactProcess,
		Threshold:    75,
		Iterations:   2,
		History:      []session.ScorePoint{{Iteration: 1, Score: 40}, {Iteration: 2, Score: 76}},
		Ready:        true,
	})
	for _, want := range []string{"бизнес-процесс", "Порог: 75", "Итераций: 2", "1. 40.0 ◐", "2. 76.0 ●", "Артефакт готов."} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatStatus() missing %q in:\n%s", want, got)
		}
	}

	fresh := FormatStatus(session.Snapshot{ArtifactType: domain.ArtifactUnknown, Threshold: 80})
	if strings.Contains(fresh, "готов") || !strings.Contains(fresh, "не определен") {
		t.Errorf("fresh status = %q", fresh)
	}
}

func TestFormatStories(t *testing.T) {
	got := FormatStories(&stories.Generation{Stories: []domain.UserStory{
		{ID: "US-001", Epic: "Orders", Title: "Place", Persona: "buyer", Goal: "to buy", Benefit: "I own it", Priority: "Must", EstimateComplexity: "M"},
		{ID: "US-002", Epic: "Orders", Title: "Cancel", Priority: "Could", EstimateComplexity: "S"},
		{ID: "US-003", Epic: "Billing", Title: "Invoice", Priority: "Should", EstimateComplexity: "L"},
	}})

	if strings.Count(got, "<b>Orders</b>") != 1 || !strings.Contains(got, "<b>Billing</b>") {
		t.Errorf("epic headers wrong in:\n%s", got)
	}
	if !strings.Contains(got, "<i>As a buyer, I want to buy, so that I own it</i>") {
		t.Errorf("statement missing in:\n%s", got)
	}
	if strings.Contains(got, "Покрытие") {
		t.Errorf("coverage should be omitted when not checked:\n%s", got)
	}
}

func TestFormatSessionCreated(t *testing.T) {
	withDetection := FormatSessionCreated(domain.ArtifactRequirements, &analyser.Detection{Confidence: 0.42, Rationale: "FR & NFR"}, 80)
	for _, want := range []string{"документ требований", "42%", "FR &amp; NFR", "Порог готовности: 80"} {
		if !strings.Contains(withDetection, want) {
			t.Errorf("missing %q in %q", want, withDetection)
		}
	}

	explicit := FormatSessionCreated(domain.ArtifactUseCase, nil, 90)
	if strings.Contains(explicit, "уверенность") {
		t.Errorf("explicit type should not show confidence: %q", explicit)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   int
	}{
		{"short message", "Hello", 100, 1},
		{"exact length", "Hello", 5, 1},
		{"split needed", "Hello World Test", 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMessage(tt.text, tt.maxLen)
			if len(got) != tt.want {
				t.Errorf("SplitMessage() parts = %v, want %v", len(got), tt.want)
			}
			if strings.Join(got, "") != tt.text {
				t.Error("parts must join back to the original text")
			}
		})
	}
}

func TestSplitMessage_HTMLTags(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "link tag",
			text: `Text before <a href="https://example.com/very/long/url">link text</a> text after`,
		},
		{
			name: "bold tag",
			text: `Some text <b>bold text here</b> more text`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitMessage(tt.text, 30)

			for i, part := range parts {
				openCount := strings.Count(part, "<")
				closeCount := strings.Count(part, ">")

				if openCount != closeCount {
					t.Errorf("Part %d has unbalanced tags (open=%d, close=%d): %q",
						i, openCount, closeCount, part)
				}
			}
		})
	}
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("ж", 50)

	parts := SplitMessage(text, 15)
	for i, p := range parts {
		if !utf8.ValidString(p) {
			t.Errorf("part %d is not valid UTF-8: %q", i, p)
		}
	}
	if strings.Join(parts, "") != text {
		t.Error("parts must join back to the original text")
	}
}

func TestIsInsideHTMLTag(t *testing.T) {
	tests := []struct {
		text string
		pos  int
		want bool
	}{
		{`<a href="url">text</a>`, 5, true},
		{`<a href="url">text</a>`, 15, false},
		{`text <b>bold</b>`, 0, false},
		{`text <b>bold</b>`, 6, true},
		{`text <b>bold</b>`, 9, false},
		{`text`, 10, false},
	}

	for _, tt := range tests {
		if got := isInsideHTMLTag(tt.text, tt.pos); got != tt.want {
			t.Errorf("isInsideHTMLTag(%q, %d) = %v, want %v", tt.text, tt.pos, got, tt.want)
		}
	}
}
