package domain

import (
	"fmt"
	"strings"
)

// Приоритеты MoSCoW
const (
	PriorityMust   = "Must"
	PriorityShould = "Should"
	PriorityCould  = "Could"
	PriorityWont   = "Won't"
)

var (
	validPriorities = map[string]bool{PriorityMust: true, PriorityShould: true, PriorityCould: true, PriorityWont: true}
	validComplexity = map[string]bool{"S": true, "M": true, "L": true, "XL": true}
)

type Epic struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// UserStory - сгенерированная история с трассировкой к требованиям
type UserStory struct {
	ID                   string   `json:"id" yaml:"id"`
	Epic                 string   `json:"epic" yaml:"epic"`
	Title                string   `json:"title" yaml:"title"`
	Persona              string   `json:"persona" yaml:"persona"`
	Goal                 string   `json:"goal" yaml:"goal"`
	Benefit              string   `json:"benefit" yaml:"benefit"`
	AcceptanceCriteria   []string `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	Priority             string   `json:"priority" yaml:"priority"`
	EstimateComplexity   string   `json:"estimate_complexity" yaml:"estimate_complexity"`
	Dependencies         []string `json:"dependencies" yaml:"dependencies"`
	SourceRequirementIDs []string `json:"source_requirement_ids" yaml:"source_requirement_ids"`
}

func (s *UserStory) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidStory)
	}
	if !validPriorities[s.Priority] {
		return fmt.Errorf("%w: %s: priority %q", ErrInvalidStory, s.ID, s.Priority)
	}
	if !validComplexity[s.EstimateComplexity] {
		return fmt.Errorf("%w: %s: complexity %q", ErrInvalidStory, s.ID, s.EstimateComplexity)
	}
	return nil
}

// Statement - "As a ..., I want ..., so that ..."
func (s *UserStory) Statement() string {
	return fmt.Sprintf("As a %s, I want %s, so that %s", s.Persona, s.Goal, s.Benefit)
}

// CoverageReport - какие требования покрыты историями
type CoverageReport struct {
	TotalRequirements     int      `json:"total_requirements" yaml:"total_requirements"`
	CoveredRequirements   int      `json:"covered_requirements" yaml:"covered_requirements"`
	UncoveredRequirements []string `json:"uncovered_requirements" yaml:"uncovered_requirements"`
	CoveragePercentage    float64  `json:"coverage_percentage" yaml:"coverage_percentage"`
}
