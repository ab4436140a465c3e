package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/session"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

const separator = "━━━━━━━━━━━━━━━━━━━━━"

func FormatSessionCreated(t domain.ArtifactType, det *analyser.Detection, threshold float64) string {
	var sb strings.Builder
	sb.WriteString("<b>Сессия создана.</b>\n")
	sb.WriteString(fmt.Sprintf("Тип артефакта: %s", typeLabel(t)))
	if det != nil {
		sb.WriteString(fmt.Sprintf(" (уверенность %.0f%%)", det.Confidence*100))
		if det.Rationale != "" {
			sb.WriteString("\n<i>" + html.EscapeString(det.Rationale) + "</i>")
		}
	}
	sb.WriteString(fmt.Sprintf("\nПорог готовности: %.0f\n\nЗапустите /analyse.", threshold))
	return sb.String()
}

func FormatOutcome(o *session.Outcome, threshold float64) string {
	r := o.Result
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<b>Итерация %d: %.1f / 100</b> %s\n", r.IterationNumber, r.OverallScore, scoreIcon(r.OverallScore)))
	if o.Ready {
		sb.WriteString(fmt.Sprintf("Готово: оценка достигла порога %.0f.\n", threshold))
	} else {
		sb.WriteString(fmt.Sprintf("До порога %.0f не хватает %.1f.\n", threshold, threshold-r.OverallScore))
	}
	if r.ExecutiveSummary != "" {
		sb.WriteString("\n" + html.EscapeString(r.ExecutiveSummary) + "\n")
	}

	if len(r.Dimensions) > 0 {
		sb.WriteString("\n<b>Измерения:</b>\n")
		for _, d := range r.Dimensions {
			sb.WriteString(fmt.Sprintf("%s %s: %.0f\n", scoreIcon(d.Score), html.EscapeString(d.Name), d.Score))
		}
	}

	if len(r.Issues) > 0 {
		sb.WriteString("\n<b>Проблемы:</b>\n")
		for _, is := range r.Issues {
			sb.WriteString(fmt.Sprintf("[%s] %s %s\n", is.Severity, html.EscapeString(is.ID), html.EscapeString(is.Description)))
		}
	}

	if o.Comparison != nil {
		sb.WriteString("\n" + separator + "\n")
		sb.WriteString(FormatComparison(o.Comparison))
	}

	if len(r.Suggestions) > 0 && !o.Ready {
		sb.WriteString(fmt.Sprintf("\n\nПредложений: %d. Смотрите /suggestions.", len(r.Suggestions)))
	}
	return sb.String()
}

func FormatSuggestions(suggestions []domain.Suggestion) string {
	if len(suggestions) == 0 {
		return "Предложений нет."
	}

	var sb strings.Builder
	sb.WriteString("<b>Предложения:</b>\n\n")
	for _, s := range suggestions {
		sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(s.ID)))
		if s.OriginalText != "" {
			sb.WriteString("Было: " + html.EscapeString(s.OriginalText) + "\n")
		}
		sb.WriteString("Стало: " + html.EscapeString(s.SuggestedText) + "\n")
		if s.Rationale != "" {
			sb.WriteString("<i>" + html.EscapeString(s.Rationale) + "</i>\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Применить: /apply SUG-001 SUG-002 или /apply all")
	return sb.String()
}

func FormatComparison(c *domain.ComparisonReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Итерация %d → %d:</b> %.1f → %.1f (%+.1f)\n",
		c.PreviousIteration, c.CurrentIteration, c.PreviousScore, c.CurrentScore, c.ScoreDelta))

	writeList(&sb, "Улучшились", c.ImprovedDimensions)
	writeList(&sb, "Ухудшились", c.RegressedDimensions)
	writeList(&sb, "Решены", c.ResolvedIssues)
	writeList(&sb, "Новые проблемы", c.NewIssues)
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	escaped := make([]string, len(items))
	for i, it := range items {
		escaped[i] = html.EscapeString(it)
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", title, strings.Join(escaped, ", ")))
}

func FormatRevision(text string) string {
	return "<b>Исправленная версия:</b>\n\n" + html.EscapeString(text) + "\n\nЗапустите /analyse для новой оценки."
}

func FormatStatus(s session.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("<b>Сессия</b>\n")
	sb.WriteString(fmt.Sprintf("Тип: %s\nПорог: %.0f\nИтераций: %d\n", typeLabel(s.ArtifactType), s.Threshold, s.Iterations))
	if s.Stories > 0 {
		sb.WriteString(fmt.Sprintf("Историй: %d\n", s.Stories))
	}

	if len(s.History) > 0 {
		sb.WriteString("\n<b>История оценок:</b>\n")
		for _, p := range s.History {
			sb.WriteString(fmt.Sprintf("%d. %.1f %s\n", p.Iteration, p.Score, scoreIcon(p.Score)))
		}
	}

	if s.Ready {
		sb.WriteString("\nАртефакт готов.")
	} else if s.Iterations > 0 {
		sb.WriteString("\nАртефакт еще не готов.")
	}
	return sb.String()
}

func FormatStories(gen *stories.Generation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>User stories: %d</b>\n", len(gen.Stories)))

	epic := ""
	for i, s := range gen.Stories {
		if i == 0 || s.Epic != epic {
			epic = s.Epic
			if epic != "" {
				sb.WriteString("\n<b>" + html.EscapeString(epic) + "</b>\n")
			}
		}
		sb.WriteString(fmt.Sprintf("\n<b>%s</b> [%s, %s] %s\n", html.EscapeString(s.ID),
			html.EscapeString(s.Priority), html.EscapeString(s.EstimateComplexity), html.EscapeString(s.Title)))
		sb.WriteString("<i>" + html.EscapeString(s.Statement()) + "</i>\n")
		for _, ac := range s.AcceptanceCriteria {
			sb.WriteString("• " + html.EscapeString(ac) + "\n")
		}
	}

	if c := gen.Coverage; c != nil {
		sb.WriteString("\n" + separator + "\n")
		sb.WriteString(fmt.Sprintf("Покрытие требований: %d/%d (%.0f%%)\n", c.CoveredRequirements, c.TotalRequirements, c.CoveragePercentage))
		writeList(&sb, "Не покрыты", c.UncoveredRequirements)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func typeLabel(t domain.ArtifactType) string {
	switch t {
	case domain.ArtifactRequirements:
		return "документ требований"
	case domain.ArtifactProcess:
		return "бизнес-процесс"
	case domain.ArtifactUserStory:
		return "user stories"
	case domain.ArtifactUseCase:
		return "use case"
	default:
		return "не определен"
	}
}

// scoreIcon - те же пороги, что у severity измерений
func scoreIcon(score float64) string {
	switch domain.SeverityForScore(score) {
	case domain.SeverityInfo:
		return "●"
	case domain.SeverityWarning:
		return "◐"
	default:
		return "○"
	}
}

func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		splitPoint := findSafeSplitPoint(text, maxLen)
		if splitPoint <= 0 || splitPoint > len(text) {
			splitPoint = maxLen
		}

		messages = append(messages, text[:splitPoint])
		text = text[splitPoint:]
	}

	return messages
}

func findSafeSplitPoint(text string, maxLen int) int {
	// ищем перевод строки или пробел, не ломая HTML-теги
	for i := maxLen - 1; i > maxLen/2; i-- {
		if i >= len(text) {
			continue
		}
		if isInsideHTMLTag(text, i) {
			continue
		}

		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	// внутри тега - режем после его конца
	if isInsideHTMLTag(text, maxLen) {
		for i := maxLen; i < len(text); i++ {
			if text[i] == '>' {
				return i + 1
			}
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}

	// не режем посреди многобайтной руны
	for i := maxLen; i > 0; i-- {
		if text[i]&0xC0 != 0x80 {
			return i
		}
	}
	return maxLen
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}
