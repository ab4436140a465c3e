package iteration

import (
	"sort"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

// Базовые значения для измерений, которых не было в previous. Проверки независимы:
// новое измерение с оценкой ниже 100 попадает и в improved, и в regressed.
const (
	missingBaselineImproved  = 0.0
	missingBaselineRegressed = 100.0
)

// Compare - чистое сравнение двух результатов. Идет только по измерениям current,
// issues сравниваются по id.
func Compare(previous, current *domain.AnalysisResult, previousIteration, currentIteration int) domain.ComparisonReport {
	prevScores := dimensionScores(previous.Dimensions)
	currScores := dimensionScores(current.Dimensions)

	improved := []string{}
	regressed := []string{}
	seen := make(map[string]bool, len(current.Dimensions))
	for _, d := range current.Dimensions {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true

		score := currScores[d.Name]
		prev, ok := prevScores[d.Name]

		baseline := missingBaselineImproved
		if ok {
			baseline = prev
		}
		if score > baseline {
			improved = append(improved, d.Name)
		}

		baseline = missingBaselineRegressed
		if ok {
			baseline = prev
		}
		if score < baseline {
			regressed = append(regressed, d.Name)
		}
	}

	prevIssues := issueIDs(previous.Issues)
	currIssues := issueIDs(current.Issues)

	return domain.ComparisonReport{
		PreviousIteration:   previousIteration,
		CurrentIteration:    currentIteration,
		PreviousScore:       previous.OverallScore,
		CurrentScore:        current.OverallScore,
		ScoreDelta:          current.OverallScore - previous.OverallScore,
		ImprovedDimensions:  improved,
		RegressedDimensions: regressed,
		ResolvedIssues:      difference(prevIssues, currIssues),
		NewIssues:           difference(currIssues, prevIssues),
	}
}

// dimensionScores - при повторе имени побеждает последнее значение
func dimensionScores(dims []domain.DimensionScore) map[string]float64 {
	m := make(map[string]float64, len(dims))
	for _, d := range dims {
		m[d.Name] = d.Score
	}
	return m
}

func issueIDs(issues []domain.Issue) map[string]struct{} {
	m := make(map[string]struct{}, len(issues))
	for _, is := range issues {
		m[is.ID] = struct{}{}
	}
	return m
}

// difference - отсортированные id из a, которых нет в b
func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
