package analyser

import "github.com/kitbuilder587/ba-analyser/internal/domain"

var requirementsProfile = Profile{
	Type:    domain.ArtifactRequirements,
	Subject: "requirements document",
	SystemPrompt: "You are an expert Business Analyst with 20+ years of experience reviewing " +
		"requirements documents across enterprise, government, and startup contexts. " +
		"You are thorough, specific, and constructive. You always back up findings " +
		"with concrete evidence from the document. You return structured JSON only.",
	Location: "where in the artifact",
	Dimensions: []Dimension{
		{
			Key:    "completeness",
			Name:   "Completeness",
			Weight: 0.25,
			Criteria: `
1. Document structure: business context, scope (in and out), stakeholders, functional and
   non-functional requirements, constraints and assumptions, dependencies, acceptance criteria.
2. Each requirement: measurable, testable, uniquely identified, edge cases and error scenarios covered.
3. Coverage gaps: obvious missing requirements for the stated scope; performance, security
   and accessibility concerns.`,
			Fields: `"missing_sections": ["list of missing sections"],
"incomplete_requirements": [{"requirement_id": "REQ-XXX or description", "issue": "what is missing", "recommendation": "what to add"}],
"coverage_gaps": ["list of gaps"],`,
		},
		{
			Key:    "consistency",
			Name:   "Consistency",
			Weight: 0.20,
			Criteria: `
1. Contradictions between requirements, constraints or assumptions.
2. Terminology: key terms defined and used uniformly, no confusing synonyms.
3. Duplicate or overlapping requirements and repeated sections.
4. Priority levels that make sense relative to each other and to dependencies.`,
			Fields: `"contradictions": [{"requirement_ids": ["REQ-A", "REQ-B"], "description": "how they contradict", "recommendation": "how to resolve"}],
"terminology_issues": [{"term": "the inconsistent term", "occurrences": ["variants"], "recommendation": "standardise to this"}],
"duplicates": [{"requirement_ids": ["REQ-A", "REQ-B"], "description": "what overlaps"}],`,
		},
		{
			Key:    "solution_neutrality",
			Name:   "Solution Neutrality",
			Weight: 0.15,
			Criteria: `
1. Requirements describe WHAT the system does, not HOW; no embedded implementation details.
2. No unnecessary technology, platform or vendor names; several solutions could satisfy each requirement.
3. Business language instead of UI patterns, database structures or API designs.
For each violation give the original text and a solution-neutral rewrite.`,
			Fields: `"violations": [{"requirement_id": "REQ-XXX or description", "original_text": "the problematic text", "issue": "why this is solution-specific", "suggested_rewrite": "solution-neutral alternative"}],`,
		},
		{
			Key:    "context_scope_clarity",
			Name:   "Context & Scope Clarity",
			Weight: 0.20,
			Criteria: `
1. Business problem or opportunity clearly stated with a rationale.
2. Scope boundaries: explicit in-scope and out-of-scope items, ambiguous areas that invite scope creep.
3. Stakeholders identified with their needs, roles and responsibilities.
4. Success criteria and measurable outcomes.
5. Documented assumptions and constraints (budget, time, technical, regulatory).`,
			Fields: `"business_problem_assessment": {"is_clear": true, "issues": []},
"scope_assessment": {"in_scope_defined": true, "out_of_scope_defined": true, "ambiguous_areas": []},
"stakeholder_assessment": {"identified": true, "missing_stakeholders": []},
"success_criteria_assessment": {"defined": true, "issues": []},`,
		},
		{
			Key:    "quality",
			Name:   "Quality",
			Weight: 0.20,
			Criteria: `
1. Unambiguous language: flag "should", "might", "could", "etc.", "and/or", "appropriate",
   "as needed" and vague quantifiers such as "fast", "many", "large".
2. Atomic requirements: exactly one thing per requirement, compound ones split.
3. Traceability: unique identifiers with a consistent numbering scheme.
4. Prioritisation: MoSCoW or equivalent, applied consistently.
5. Testability: a test can be written for each requirement.`,
			Fields: `"ambiguous_language": [{"requirement_id": "REQ-XXX", "text": "the ambiguous text", "issue": "why", "suggested_rewrite": "clearer alternative"}],
"non_atomic_requirements": [{"requirement_id": "REQ-XXX", "text": "compound requirement", "suggested_split": ["part 1", "part 2"]}],
"traceability_issues": ["list of issues"],
"prioritisation_issues": ["list of issues"],
"testability_issues": [{"requirement_id": "REQ-XXX", "issue": "why not testable", "recommendation": "how to make it testable"}],`,
		},
	},
}
