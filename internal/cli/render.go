package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/config"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

const rule = "────────────────────────────────────────"

func printResult(w io.Writer, res *domain.AnalysisResult, threshold float64) {
	status := "NOT READY"
	if res.IsReady(threshold) {
		status = "READY"
	}
	fmt.Fprintf(w, "%s\n%s  iteration %d  score %.1f/100  [%s, threshold %.0f]\n%s\n",
		rule, res.ArtifactType, res.IterationNumber, res.OverallScore, status, threshold, rule)

	if res.ExecutiveSummary != "" {
		fmt.Fprintf(w, "\n%s\n", res.ExecutiveSummary)
	}

	if len(res.Dimensions) > 0 {
		fmt.Fprintln(w, "\nDimensions:")
		for _, d := range res.Dimensions {
			fmt.Fprintf(w, "  %-32s %5.1f  %s  %s\n", d.Name, d.Score, scoreBar(d.Score), d.Severity)
			for _, f := range d.Findings {
				fmt.Fprintf(w, "      - %s\n", f)
			}
		}
	}

	if len(res.Issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, is := range res.Issues {
			fmt.Fprintf(w, "  [%s] %s %s\n", is.Severity, is.ID, is.Description)
			if is.Location != "" {
				fmt.Fprintf(w, "      at: %s\n", is.Location)
			}
			if is.Recommendation != "" {
				fmt.Fprintf(w, "      fix: %s\n", is.Recommendation)
			}
		}
	}
}

// scoreBar - десять делений на 100 баллов
func scoreBar(score float64) string {
	filled := int(score/10 + 0.5)
	filled = max(0, min(10, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func printSuggestions(w io.Writer, suggestions []domain.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "\nNo suggestions.")
		return
	}
	fmt.Fprintln(w, "\nSuggestions:")
	for _, s := range suggestions {
		fmt.Fprintf(w, "  %s\n", s.ID)
		if s.OriginalText != "" {
			fmt.Fprintf(w, "      - %s\n", s.OriginalText)
		}
		fmt.Fprintf(w, "      + %s\n", s.SuggestedText)
		if s.Rationale != "" {
			fmt.Fprintf(w, "      (%s)\n", s.Rationale)
		}
	}
}

func printComparison(w io.Writer, c *domain.ComparisonReport) {
	fmt.Fprintf(w, "\nIteration %d -> %d: %.1f -> %.1f (%+.1f)\n",
		c.PreviousIteration, c.CurrentIteration, c.PreviousScore, c.CurrentScore, c.ScoreDelta)
	printList(w, "improved", c.ImprovedDimensions)
	printList(w, "regressed", c.RegressedDimensions)
	printList(w, "resolved", c.ResolvedIssues)
	printList(w, "new issues", c.NewIssues)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "  %-11s %s\n", label+":", strings.Join(items, ", "))
}

func printDetection(w io.Writer, det analyser.Detection) {
	fmt.Fprintf(w, "%s (confidence %.2f)\n", det.Type, det.Confidence)
	if det.Rationale != "" {
		fmt.Fprintln(w, det.Rationale)
	}
	if len(det.SecondaryTypes) > 0 {
		fmt.Fprintf(w, "also: %s\n", strings.Join(det.SecondaryTypes, ", "))
	}
}

func printSettings(w io.Writer, settings []config.Setting) {
	for _, s := range settings {
		fmt.Fprintf(w, "%s=%s\n", s.Key, s.Value)
	}
}

// printStories группирует истории по эпикам в порядке их появления
func printStories(w io.Writer, gen *stories.Generation) {
	fmt.Fprintf(w, "%s\n%d epic(s), %d stories\n%s\n", rule, len(gen.Epics), len(gen.Stories), rule)

	var order []string
	byEpic := make(map[string][]domain.UserStory)
	for _, e := range gen.Epics {
		if _, ok := byEpic[e.Name]; !ok {
			order = append(order, e.Name)
			byEpic[e.Name] = nil
		}
	}
	for _, s := range gen.Stories {
		if _, ok := byEpic[s.Epic]; !ok {
			order = append(order, s.Epic)
		}
		byEpic[s.Epic] = append(byEpic[s.Epic], s)
	}

	for _, epic := range order {
		items := byEpic[epic]
		if len(items) == 0 {
			continue
		}
		name := epic
		if name == "" {
			name = "(no epic)"
		}
		fmt.Fprintf(w, "\n%s\n", name)
		for _, s := range items {
			fmt.Fprintf(w, "  %s [%s, %s] %s\n", s.ID, s.Priority, s.EstimateComplexity, s.Title)
			fmt.Fprintf(w, "      %s\n", s.Statement())
			for _, ac := range s.AcceptanceCriteria {
				fmt.Fprintf(w, "      - %s\n", ac)
			}
			if len(s.Dependencies) > 0 {
				fmt.Fprintf(w, "      depends on: %s\n", strings.Join(s.Dependencies, ", "))
			}
			if len(s.SourceRequirementIDs) > 0 {
				fmt.Fprintf(w, "      covers: %s\n", strings.Join(s.SourceRequirementIDs, ", "))
			}
		}
	}

	if c := gen.Coverage; c != nil {
		fmt.Fprintf(w, "\nCoverage: %d/%d requirements (%.0f%%)\n", c.CoveredRequirements, c.TotalRequirements, c.CoveragePercentage)
		printList(w, "uncovered", c.UncoveredRequirements)
	}
}
