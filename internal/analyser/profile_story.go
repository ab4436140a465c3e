package analyser

import "github.com/kitbuilder587/ba-analyser/internal/domain"

var storyProfile = Profile{
	Type:    domain.ArtifactUserStory,
	Subject: "set of user stories",
	SystemPrompt: "You are an expert Agile Business Analyst and Product Owner with deep " +
		"experience writing and reviewing user stories. You evaluate stories " +
		"against industry best practices including INVEST principles. " +
		"You are thorough, specific, and constructive. You return structured JSON only.",
	Location: "which story",
	Dimensions: []Dimension{
		{
			Key:    "format_compliance",
			Name:   "Format Compliance",
			Weight: 0.20,
			Criteria: `
1. Each story follows "As a <persona>, I want <goal>, so that <benefit>".
2. The benefit clause states real value rather than restating the goal.
3. Each story has an identifier and a title.`,
			Fields: `"format_issues": [{"story_id": "...", "issue": "what is wrong with the format", "recommendation": "how to fix"}],`,
		},
		{
			Key:    "persona_quality",
			Name:   "Persona Quality",
			Weight: 0.20,
			Criteria: `
1. Personas are specific roles, not "user" or "customer".
2. Personas are used consistently across stories.
3. The persona plausibly owns the stated goal.`,
			Fields: `"generic_personas": [{"story_id": "...", "persona": "the generic persona", "suggestion": "more specific alternative"}],`,
		},
		{
			Key:    "acceptance_criteria",
			Name:   "Acceptance Criteria",
			Weight: 0.35,
			Criteria: `
1. Every story has acceptance criteria, preferably Given/When/Then.
2. Criteria are specific, measurable and testable.
3. Negative paths and edge cases are covered.
4. Criteria describe behaviour, not implementation.`,
			Fields: `"missing_criteria": ["story ids without acceptance criteria"],
"weak_criteria": [{"story_id": "...", "criterion": "the weak criterion", "issue": "why it is weak", "suggestion": "stronger alternative"}],
"missing_edge_cases": [{"story_id": "...", "scenario": "edge case not covered"}],`,
		},
		{
			Key:    "invest_principles",
			Name:   "INVEST Principles",
			Weight: 0.25,
			Criteria: `
Independent, Negotiable, Valuable, Estimable, Small, Testable.
Also flag solution language in story bodies and dependencies between stories that are not identified.`,
			Fields: `"violations": [{"story_id": "...", "principle": "which INVEST letter", "issue": "...", "recommendation": "..."}],`,
		},
	},
}
