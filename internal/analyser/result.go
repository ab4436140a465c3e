package analyser

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

// number принимает и 72, и "72": модели путаются
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		// нечисловое значение считаем отсутствующим
		return nil
	}
	n.value, n.set = f, true
	return nil
}

type synthesisPayload struct {
	OverallScore     number `json:"overall_score"`
	ExecutiveSummary string `json:"executive_summary"`
	DimensionScores  []struct {
		Name        string   `json:"name"`
		Score       number   `json:"score"`
		Severity    string   `json:"severity"`
		TopFindings []string `json:"top_findings"`
	} `json:"dimension_scores"`
	CriticalIssues []struct {
		ID             string `json:"id"`
		Dimension      string `json:"dimension"`
		Severity       string `json:"severity"`
		Description    string `json:"description"`
		Location       string `json:"location"`
		Recommendation string `json:"recommendation"`
	} `json:"critical_issues"`
	Suggestions []struct {
		ID            string `json:"id"`
		OriginalText  string `json:"original_text"`
		SuggestedText string `json:"suggested_text"`
		Rationale     string `json:"rationale"`
	} `json:"suggestions"`
}

const (
	defaultIssueID      = "ISSUE-???"
	defaultSuggestionID = "SUG-???"
)

func buildResult(p Profile, s synthesisPayload, raw []map[string]any, iteration int) *domain.AnalysisResult {
	res := &domain.AnalysisResult{
		ArtifactType:     p.Type,
		OverallScore:     domain.ClampScore(s.OverallScore.value),
		ExecutiveSummary: s.ExecutiveSummary,
		Dimensions:       make([]domain.DimensionScore, 0, len(s.DimensionScores)),
		Issues:           make([]domain.Issue, 0, len(s.CriticalIssues)),
		Suggestions:      make([]domain.Suggestion, 0, len(s.Suggestions)),
		IterationNumber:  iteration,
	}

	for _, d := range s.DimensionScores {
		findings := d.TopFindings
		if findings == nil {
			findings = []string{}
		}
		res.Dimensions = append(res.Dimensions, domain.DimensionScore{
			Name:     d.Name,
			Score:    domain.ClampScore(d.Score.value),
			Findings: findings,
			Severity: domain.NormalizeSeverity(d.Severity, domain.SeverityInfo),
		})
	}
	if len(res.Dimensions) == 0 {
		res.Dimensions = dimensionsFromRaw(p, raw)
	}

	for _, is := range s.CriticalIssues {
		res.Issues = append(res.Issues, domain.Issue{
			ID:             orDefault(is.ID, defaultIssueID),
			Dimension:      is.Dimension,
			Severity:       domain.NormalizeSeverity(is.Severity, domain.SeverityWarning),
			Description:    is.Description,
			Location:       is.Location,
			Recommendation: is.Recommendation,
		})
	}

	for _, sg := range s.Suggestions {
		res.Suggestions = append(res.Suggestions, domain.Suggestion{
			ID:            orDefault(sg.ID, defaultSuggestionID),
			OriginalText:  sg.OriginalText,
			SuggestedText: sg.SuggestedText,
			Rationale:     sg.Rationale,
		})
	}

	return res
}

// dimensionsFromRaw - запасной вариант, когда синтез не вернул dimension_scores
func dimensionsFromRaw(p Profile, raw []map[string]any) []domain.DimensionScore {
	dims := make([]domain.DimensionScore, 0, len(raw))
	for i, r := range raw {
		if i >= len(p.Dimensions) {
			break
		}
		score := domain.ClampScore(rawScore(r))
		findings := []string{}
		if summary, ok := r["summary"].(string); ok && summary != "" {
			findings = append(findings, summary)
		}
		dims = append(dims, domain.DimensionScore{
			Name:     p.Dimensions[i].Name,
			Score:    score,
			Findings: findings,
			Severity: domain.SeverityForScore(score),
		})
	}
	return dims
}

func rawScore(r map[string]any) float64 {
	switch v := r["score"].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	}
	return 0
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
