package sim

import (
	"strings"
	"testing"

	"multiverse-copilot-backend/models"
)

func TestBuildIsDeterministic(t *testing.T) {
	var pb PromptBuilder
	constraints := map[string]any{"budget": 500000, "team_size": 12, "appetite": "low"}
	spec := &models.DecisionSpec{
		DecisionTitle: "expand",
		Objective:     "grow",
		TimeHorizon:   "12 months",
	}
	ctxChunks := []string{"chunk one", "chunk two"}

	first := pb.Build("launch in europe", ctxChunks, constraints, spec)
	second := pb.Build("launch in europe", ctxChunks, constraints, spec)
	if first != second {
		t.Fatal("identical inputs must produce byte-identical prompts")
	}
}

func TestBuildConstraintsSortedByKey(t *testing.T) {
	var pb PromptBuilder
	prompt := pb.Build("d", nil, map[string]any{"zeta": 1, "alpha": 2}, nil)
	if !strings.Contains(prompt, `{"alpha":2,"zeta":1}`) {
		t.Fatalf("constraints not serialized with sorted keys:\n%s", prompt)
	}
}

func TestBuildEmptyContextPlaceholder(t *testing.T) {
	var pb PromptBuilder
	prompt := pb.Build("d", nil, nil, nil)
	if !strings.Contains(prompt, "Retrieved context:\n- none") {
		t.Fatalf("missing empty-context placeholder:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Constraints: {}") {
		t.Fatalf("nil constraints must serialize as empty object:\n%s", prompt)
	}
	if strings.Contains(prompt, "Decision spec:") {
		t.Fatal("nil spec must not emit a spec block")
	}
}

func TestBuildIncludesRequiredInstructions(t *testing.T) {
	var pb PromptBuilder
	prompt := pb.Build("launch", []string{"c1"}, nil, nil)
	for _, want := range []string{
		"Return JSON only",
		"branch_name",
		"Limit branches to max 6.",
		"Decision text: launch",
		"- c1",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildRepairEmbedsErrorAndPayload(t *testing.T) {
	var pb PromptBuilder
	prompt := pb.BuildRepair(`{"broken": true`, "input_summary is required")
	if !strings.Contains(prompt, "input_summary is required") {
		t.Fatal("repair prompt missing validation error")
	}
	if !strings.Contains(prompt, `{"broken": true`) {
		t.Fatal("repair prompt missing broken payload")
	}
}

func TestBuildDecisionSpecMentionsRequiredFields(t *testing.T) {
	var pb PromptBuilder
	prompt := pb.BuildDecisionSpec("should we acquire the competitor")
	for _, want := range []string{"decision_title", "time_horizon", "should we acquire the competitor"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("spec prompt missing %q", want)
		}
	}
}
