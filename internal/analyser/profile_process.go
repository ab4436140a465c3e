package analyser

import "github.com/kitbuilder587/ba-analyser/internal/domain"

var processProfile = Profile{
	Type:    domain.ArtifactProcess,
	Subject: "business process description",
	SystemPrompt: "You are an expert Business Analyst specialising in process modelling and " +
		"improvement. You have deep experience with BPMN, value stream mapping, and " +
		"process optimisation. You are thorough, specific, and constructive. " +
		"You return structured JSON only.",
	Location: "where in the process",
	Dimensions: []Dimension{
		{
			Key:    "structure",
			Name:   "Structure",
			Weight: 0.30,
			Criteria: `
1. Clear start and end events.
2. Steps in a logical sequence with no gaps or dead ends.
3. Each step has a single, clearly described activity.
4. Level of detail consistent across the process.`,
			Fields: `"start_event": {"defined": true, "description": "..."},
"end_event": {"defined": true, "description": "..."},
"sequence_issues": ["gaps, dead ends or unclear ordering"],
"granularity_issues": ["steps that are too coarse or too fine"],`,
		},
		{
			Key:    "decision_points",
			Name:   "Decision Points",
			Weight: 0.25,
			Criteria: `
1. Every decision has explicit criteria.
2. All outcomes of each decision are handled, including the negative path.
3. Exceptions, errors and escalations are described.
4. Loops and rework paths terminate.`,
			Fields: `"decisions": [{"step": "step reference", "criteria_defined": true, "missing_outcomes": ["..."], "recommendation": "..."}],
"unhandled_exceptions": ["exception scenarios not covered"],`,
		},
		{
			Key:    "roles_responsibilities",
			Name:   "Roles & Responsibilities",
			Weight: 0.25,
			Criteria: `
1. Every step has an owner role.
2. Hand-offs between roles are explicit, including what is handed over.
3. Accountability for decisions and approvals is clear.
4. No role is overloaded or missing from steps it should own.`,
			Fields: `"unowned_steps": ["steps without an owner"],
"handoff_issues": [{"from_role": "...", "to_role": "...", "step": "...", "issue": "what is unclear"}],`,
		},
		{
			Key:    "business_alignment",
			Name:   "Business Alignment",
			Weight: 0.20,
			Criteria: `
1. The process purpose and business outcome are stated.
2. Performance measures or SLAs exist for key steps.
3. Steps that add no value or duplicate effort.
4. Compliance and control points where the domain requires them.`,
			Fields: `"purpose_defined": true,
"missing_measures": ["steps or outcomes lacking metrics"],
"waste": ["non-value-adding or duplicated steps"],`,
		},
	},
}
