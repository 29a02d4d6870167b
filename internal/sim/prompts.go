package sim

import (
	"encoding/json"
	"strings"

	"multiverse-copilot-backend/models"
)

// PromptBuilder produces the prompt strings sent to the LLM. Every builder
// is a pure function of its arguments: no timestamps, no randomness, no
// hidden state. Reproducibility tests depend on byte-identical output.
type PromptBuilder struct{}

// Build assembles the simulation prompt from the decision text, retrieved
// context, caller constraints and the extracted decision spec. Constraints
// serialize with sorted keys (encoding/json map ordering).
func (PromptBuilder) Build(decisionText string, retrievedContext []string, constraints map[string]any, spec *models.DecisionSpec) string {
	contextBlock := "- none"
	if len(retrievedContext) > 0 {
		var sb strings.Builder
		for i, c := range retrievedContext {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- ")
			sb.WriteString(c)
		}
		contextBlock = sb.String()
	}

	if constraints == nil {
		constraints = map[string]any{}
	}
	constraintsJSON, _ := json.Marshal(constraints)

	var sb strings.Builder
	sb.WriteString("You are Multiverse Copilot, a high-stakes business strategy simulator.\n")
	sb.WriteString("Return JSON only. Do not include markdown.\n")
	sb.WriteString("Required output fields: decision_id,input_summary,assumptions,branches,overall_recommendation,audit.\n")
	sb.WriteString("Branch instruction: generate diverse futures: optimistic, base, pessimistic, wildcard_1, wildcard_2.\n")
	sb.WriteString("Each branch must include: branch_name,narrative,key_events,KPIs,risk_clusters,stress_points,failure_triggers,mitigations,stability_score.\n")
	sb.WriteString("Limit branches to max 6.\n")
	sb.WriteString("Decision text: ")
	sb.WriteString(decisionText)
	sb.WriteString("\nRetrieved context:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\nConstraints: ")
	sb.Write(constraintsJSON)
	if spec != nil {
		specJSON, _ := json.Marshal(spec)
		sb.WriteString("\nDecision spec: ")
		sb.Write(specJSON)
	}
	sb.WriteString("\nProduce realistic KPI values and clear mitigations ranked by impact.")
	return sb.String()
}

// BuildRepair wraps the prior broken output and its validation error into a
// single corrective re-prompt
func (PromptBuilder) BuildRepair(brokenJSON, validationError string) string {
	var sb strings.Builder
	sb.WriteString("Repair the following JSON to match the required schema exactly. JSON only.\n")
	sb.WriteString("Validation error: ")
	sb.WriteString(validationError)
	sb.WriteString("\nBroken JSON:\n")
	sb.WriteString(brokenJSON)
	return sb.String()
}

// BuildDecisionSpec asks for a structured extraction of free-form decision
// text
func (PromptBuilder) BuildDecisionSpec(transcript string) string {
	var sb strings.Builder
	sb.WriteString("Extract a structured decision specification from the text below. Return JSON only.\n")
	sb.WriteString("Required fields: decision_title,objective,options,constraints,time_horizon,market_context,key_assumptions.\n")
	sb.WriteString("Text: ")
	sb.WriteString(transcript)
	return sb.String()
}
