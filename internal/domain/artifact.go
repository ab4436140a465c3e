package domain

import (
	"strings"
	"time"
)

type ArtifactType string

const (
	ArtifactRequirements ArtifactType = "requirements_document"
	ArtifactProcess      ArtifactType = "business_process"
	ArtifactUserStory    ArtifactType = "user_story"
	ArtifactUseCase      ArtifactType = "use_case"
	ArtifactUnknown      ArtifactType = "unknown"
)

func (t ArtifactType) IsValid() bool {
	switch t {
	case ArtifactRequirements, ArtifactProcess, ArtifactUserStory, ArtifactUseCase, ArtifactUnknown:
		return true
	}
	return false
}

func (t ArtifactType) String() string { return string(t) }

// ParseArtifactType понимает и полные имена, и короткие алиасы из CLI.
func ParseArtifactType(s string) (ArtifactType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "requirements_document", "requirements", "req":
		return ArtifactRequirements, nil
	case "business_process", "process":
		return ArtifactProcess, nil
	case "user_story", "story", "stories":
		return ArtifactUserStory, nil
	case "use_case", "usecase":
		return ArtifactUseCase, nil
	case "unknown":
		return ArtifactUnknown, nil
	}
	return ArtifactUnknown, ErrInvalidArtifactType
}

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// NormalizeSeverity приводит ответ модели к INFO|WARNING|CRITICAL, иначе fallback.
func NormalizeSeverity(raw string, fallback Severity) Severity {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if s.IsValid() {
		return s
	}
	return fallback
}

// SeverityForScore - порог как в отчетах: >=70 INFO, >=40 WARNING, ниже CRITICAL
func SeverityForScore(score float64) Severity {
	switch {
	case score >= 70:
		return SeverityInfo
	case score >= 40:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

type DimensionScore struct {
	Name     string   `json:"name" yaml:"name"`
	Score    float64  `json:"score" yaml:"score"`
	Findings []string `json:"findings" yaml:"findings"`
	Severity Severity `json:"severity" yaml:"severity"`
}

type Issue struct {
	ID             string   `json:"id" yaml:"id"`
	Dimension      string   `json:"dimension" yaml:"dimension"`
	Severity       Severity `json:"severity" yaml:"severity"`
	Description    string   `json:"description" yaml:"description"`
	Location       string   `json:"location" yaml:"location"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`
}

type Suggestion struct {
	ID            string `json:"id" yaml:"id"`
	OriginalText  string `json:"original_text" yaml:"original_text"`
	SuggestedText string `json:"suggested_text" yaml:"suggested_text"`
	Rationale     string `json:"rationale" yaml:"rationale"`
}

type AnalysisResult struct {
	ArtifactType     ArtifactType     `json:"artifact_type" yaml:"artifact_type"`
	OverallScore     float64          `json:"overall_score" yaml:"overall_score"`
	ExecutiveSummary string           `json:"executive_summary,omitempty" yaml:"executive_summary,omitempty"`
	Dimensions       []DimensionScore `json:"dimensions" yaml:"dimensions"`
	Issues           []Issue          `json:"issues" yaml:"issues"`
	Suggestions      []Suggestion     `json:"suggestions" yaml:"suggestions"`
	IterationNumber  int              `json:"iteration_number" yaml:"iteration_number"`
}

// IsReady - порог включительный
func (r *AnalysisResult) IsReady(threshold float64) bool {
	return r.OverallScore >= threshold
}

// SuggestionsCopy отдает копию, чтобы вызывающий не мог поменять историю.
func (r *AnalysisResult) SuggestionsCopy() []Suggestion {
	out := make([]Suggestion, len(r.Suggestions))
	copy(out, r.Suggestions)
	return out
}

type ComparisonReport struct {
	PreviousIteration   int      `json:"previous_iteration" yaml:"previous_iteration"`
	CurrentIteration    int      `json:"current_iteration" yaml:"current_iteration"`
	PreviousScore       float64  `json:"previous_score" yaml:"previous_score"`
	CurrentScore        float64  `json:"current_score" yaml:"current_score"`
	ScoreDelta          float64  `json:"score_delta" yaml:"score_delta"`
	ImprovedDimensions  []string `json:"improved_dimensions" yaml:"improved_dimensions"`
	RegressedDimensions []string `json:"regressed_dimensions" yaml:"regressed_dimensions"`
	ResolvedIssues      []string `json:"resolved_issues" yaml:"resolved_issues"`
	NewIssues           []string `json:"new_issues" yaml:"new_issues"`
}

// IterationRecord - одна итерация сессии в архиве
type IterationRecord struct {
	ID           string          `json:"id" yaml:"id"`
	SessionID    string          `json:"session_id" yaml:"session_id"`
	Iteration    int             `json:"iteration" yaml:"iteration"`
	ArtifactText string          `json:"artifact_text" yaml:"artifact_text"`
	Result       *AnalysisResult `json:"result" yaml:"result"`
	CreatedAt    time.Time       `json:"created_at" yaml:"created_at"`
}

func (r *IterationRecord) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return ErrEmptySessionID
	}
	if r.Iteration < 1 {
		return ErrInvalidIteration
	}
	if r.Result == nil {
		return ErrMissingResult
	}
	return nil
}
