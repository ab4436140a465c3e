package analyser

import (
	"fmt"
	"strings"
)

func dimensionPrompt(artifact string, subject string, d Dimension) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<artifact>\n%s\n</artifact>\n\n", artifact)
	fmt.Fprintf(&b, "<evaluation_criteria>\nEvaluate the %s for %s:\n\n%s\n</evaluation_criteria>\n\n",
		subject, strings.ToUpper(d.Name), strings.TrimSpace(d.Criteria))

	b.WriteString("<output_format>\nReturn ONLY valid JSON:\n{\n")
	fmt.Fprintf(&b, "  \"dimension\": %q,\n", d.Key)
	b.WriteString("  \"score\": <0-100>,\n")
	if f := strings.TrimSpace(d.Fields); f != "" {
		for _, line := range strings.Split(f, "\n") {
			b.WriteString("  " + line + "\n")
		}
	}
	b.WriteString("  \"strengths\": [\"what is done well\"],\n")
	b.WriteString("  \"summary\": \"2-3 sentence overall assessment\"\n")
	b.WriteString("}\n</output_format>")

	return b.String()
}

func synthesisPrompt(p Profile, dimensionResultsJSON, artifact string) string {
	var weights strings.Builder
	for _, d := range p.Dimensions {
		fmt.Fprintf(&weights, "   - %s: %.0f%%\n", d.Name, d.Weight*100)
	}

	return fmt.Sprintf(`<dimension_results>
%s
</dimension_results>

<artifact>
%s
</artifact>

<instructions>
You have evaluated a %s across %d dimensions. The individual dimension results are provided above.

Synthesise these results into an overall assessment:

1. Calculate an overall score (0-100) as a weighted average:
%s
2. Identify the top 3-5 most critical issues across all dimensions.

3. Generate specific, actionable suggestions for improvement. For each suggestion provide
   the exact original text from the artifact, a replacement or addition, and a rationale.

4. Provide a brief executive summary (3-5 sentences).

Return ONLY valid JSON matching this structure:
{
  "overall_score": <0-100>,
  "executive_summary": "3-5 sentence summary",
  "dimension_scores": [
    {
      "name": "dimension name",
      "score": <0-100>,
      "severity": "INFO|WARNING|CRITICAL",
      "top_findings": ["key findings for this dimension"]
    }
  ],
  "critical_issues": [
    {
      "id": "ISSUE-001",
      "dimension": "which dimension",
      "severity": "INFO|WARNING|CRITICAL",
      "description": "what the issue is",
      "location": "%s",
      "recommendation": "how to fix it"
    }
  ],
  "suggestions": [
    {
      "id": "SUG-001",
      "original_text": "text from the artifact",
      "suggested_text": "improved version",
      "rationale": "why this change helps"
    }
  ]
}
</instructions>`, dimensionResultsJSON, artifact, p.Subject, len(p.Dimensions), weights.String(), p.Location)
}
