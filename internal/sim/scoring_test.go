package sim

import (
	"testing"

	"multiverse-copilot-backend/models"
)

func TestComputeStabilityScoreBaseline(t *testing.T) {
	b := &models.Branch{BranchName: "base", Narrative: "steady state"}
	if got := ComputeStabilityScore(b); got != 70.0 {
		t.Fatalf("baseline score = %v, want 70", got)
	}
}

func TestComputeStabilityScoreIsDeterministic(t *testing.T) {
	conf := 0.8
	b := &models.Branch{
		BranchName: "pessimistic",
		Narrative:  "revenue decline across segments",
		KPIs:       &models.KPISet{Margin: -0.1},
		RiskClusters: []models.RiskCluster{
			{Tag: "cash", Severity: "high", SeverityLevel: 3, Confidence: &conf},
			{Tag: "churn", Severity: "medium", SeverityLevel: 2},
		},
		FailureTriggers: []models.FailureTrigger{
			{Condition: "runway < 6mo"}, {Condition: "churn > 10%"},
			{Condition: "cac doubles"}, {Condition: "key hire quits"},
		},
		Mitigations: []models.Mitigation{
			{Rank: 1, Action: "renegotiate vendor contracts early"},
			{Rank: 2, Action: "freeze discretionary spending now"},
		},
		StressPoints: []models.StressPoint{
			{Resource: "cash", Threshold: "< 3 months runway"},
		},
	}

	first := ComputeStabilityScore(b)
	second := ComputeStabilityScore(b)
	if first != second {
		t.Fatalf("score not deterministic: %v vs %v", first, second)
	}
	if first < 0 || first > 100 {
		t.Fatalf("score out of bounds: %v", first)
	}
}

func TestComputeStabilityScoreComponents(t *testing.T) {
	// One severity level 3 risk: 70 - 3*3.5 = 59.5
	b := &models.Branch{
		Narrative:    "flat",
		RiskClusters: []models.RiskCluster{{Tag: "cash", SeverityLevel: 3}},
	}
	if got := ComputeStabilityScore(b); got != 59.5 {
		t.Fatalf("risk penalty score = %v, want 59.5", got)
	}

	// Four failure triggers: 70 - 2*5 = 60
	b = &models.Branch{
		Narrative: "flat",
		FailureTriggers: []models.FailureTrigger{
			{Condition: "a"}, {Condition: "b"}, {Condition: "c"}, {Condition: "d"},
		},
	}
	if got := ComputeStabilityScore(b); got != 60.0 {
		t.Fatalf("trigger penalty score = %v, want 60", got)
	}

	// Negative margin: 70 - 12 = 58
	b = &models.Branch{Narrative: "flat", KPIs: &models.KPISet{Margin: -0.05}}
	if got := ComputeStabilityScore(b); got != 58.0 {
		t.Fatalf("margin penalty score = %v, want 58", got)
	}

	// Revenue decline marker in narrative: 70 - 8 = 62
	b = &models.Branch{Narrative: "a sharp revenue decline follows"}
	if got := ComputeStabilityScore(b); got != 62.0 {
		t.Fatalf("decline penalty score = %v, want 62", got)
	}

	// Four strong mitigations cap at +12: 70 + 12 = 82
	b = &models.Branch{
		Narrative: "flat",
		Mitigations: []models.Mitigation{
			{Rank: 1, Action: "diversify supplier base aggressively"},
			{Rank: 1, Action: "hedge currency exposure by quarter"},
			{Rank: 2, Action: "accelerate enterprise pipeline deals"},
			{Rank: 2, Action: "lock multi-year customer contracts"},
		},
	}
	if got := ComputeStabilityScore(b); got != 82.0 {
		t.Fatalf("mitigation boost score = %v, want 82", got)
	}

	// Weak mitigations (low rank or short action) earn nothing.
	b = &models.Branch{
		Narrative: "flat",
		Mitigations: []models.Mitigation{
			{Rank: 3, Action: "a long enough action string here"},
			{Rank: 1, Action: "too short"},
		},
	}
	if got := ComputeStabilityScore(b); got != 70.0 {
		t.Fatalf("weak mitigations score = %v, want 70", got)
	}

	// Two distinct risk tags: 70 - (1+1)*3.5 + 6 = 69
	b = &models.Branch{
		Narrative: "flat",
		RiskClusters: []models.RiskCluster{
			{Tag: "cash", SeverityLevel: 1},
			{Tag: "churn", SeverityLevel: 1},
		},
	}
	if got := ComputeStabilityScore(b); got != 69.0 {
		t.Fatalf("diversification score = %v, want 69", got)
	}

	// Five manageable stress thresholds cap at +8: 70 + 8 = 78
	points := make([]models.StressPoint, 5)
	for i := range points {
		points[i] = models.StressPoint{Resource: "cash", Threshold: "< 3 months"}
	}
	b = &models.Branch{Narrative: "flat", StressPoints: points}
	if got := ComputeStabilityScore(b); got != 78.0 {
		t.Fatalf("stress threshold score = %v, want 78", got)
	}
}

func TestComputeStabilityScoreClampsToZero(t *testing.T) {
	risks := make([]models.RiskCluster, 10)
	for i := range risks {
		risks[i] = models.RiskCluster{Tag: "same", SeverityLevel: 4}
	}
	b := &models.Branch{
		Narrative:    "revenue decline everywhere",
		KPIs:         &models.KPISet{Margin: -1},
		RiskClusters: risks,
	}
	if got := ComputeStabilityScore(b); got != 0.0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}
