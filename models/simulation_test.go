package models

import "testing"

func TestNormalizeSeverity(t *testing.T) {
	cases := []struct {
		in    string
		label string
		level int
	}{
		{"low", "low", 1},
		{"minor", "low", 1},
		{"MODERATE", "medium", 2},
		{"medium", "medium", 2},
		{"SEVERE", "high", 3},
		{"high", "high", 3},
		{"urgent", "critical", 4},
		{"critical", "critical", 4},
		{"  High  ", "high", 3},
		{"unknown-label", "medium", 2},
		{"", "medium", 2},
	}
	for _, tc := range cases {
		label, level := NormalizeSeverity(tc.in)
		if label != tc.label || level != tc.level {
			t.Fatalf("NormalizeSeverity(%q) = %q/%d, want %q/%d",
				tc.in, label, level, tc.label, tc.level)
		}
	}
}

func TestNormalizeBranchCanonicalizesRisks(t *testing.T) {
	b := Branch{
		RiskClusters: []RiskCluster{
			{Tag: "cash", Severity: "Severe"},
			{Tag: "churn", Severity: "made-up"},
		},
	}
	NormalizeBranch(&b)
	if b.RiskClusters[0].Severity != "high" || b.RiskClusters[0].SeverityLevel != 3 {
		t.Fatalf("severe not canonicalized: %+v", b.RiskClusters[0])
	}
	if b.RiskClusters[1].Severity != "medium" || b.RiskClusters[1].SeverityLevel != 2 {
		t.Fatalf("unknown severity should default to medium: %+v", b.RiskClusters[1])
	}
}

func TestNormalizeBranchAliasesDeprecatedScore(t *testing.T) {
	legacy := 77.0
	b := Branch{StabilityScore: &legacy}
	NormalizeBranch(&b)
	if b.LLMStabilityScore == nil || *b.LLMStabilityScore != 77.0 {
		t.Fatalf("deprecated score not aliased: %+v", b.LLMStabilityScore)
	}

	explicit := 55.0
	b2 := Branch{StabilityScore: &legacy, LLMStabilityScore: &explicit}
	NormalizeBranch(&b2)
	if *b2.LLMStabilityScore != 55.0 {
		t.Fatalf("explicit llm score must win over alias, got %v", *b2.LLMStabilityScore)
	}
}

func TestFuseScores(t *testing.T) {
	if got := FuseScores(50, 100); got != 70.0 {
		t.Fatalf("FuseScores(50,100) = %v, want 70", got)
	}
	if got := FuseScores(100, 100); got != 100.0 {
		t.Fatalf("FuseScores(100,100) = %v, want 100", got)
	}
	if got := FuseScores(0, 0); got != 0.0 {
		t.Fatalf("FuseScores(0,0) = %v, want 0", got)
	}
	// Rounds to two decimals.
	if got := FuseScores(33.333, 66.667); got != 46.67 {
		t.Fatalf("FuseScores(33.333,66.667) = %v, want 46.67", got)
	}
}

func TestLimitBranches(t *testing.T) {
	branches := make([]Branch, 9)
	for i := range branches {
		branches[i].BranchName = string(rune('a' + i))
	}
	limited := LimitBranches(branches)
	if len(limited) != MaxBranches {
		t.Fatalf("expected %d branches, got %d", MaxBranches, len(limited))
	}
	for i := range limited {
		if limited[i].BranchName != string(rune('a'+i)) {
			t.Fatalf("branch order changed at %d: %q", i, limited[i].BranchName)
		}
	}

	few := branches[:3]
	if got := LimitBranches(few); len(got) != 3 {
		t.Fatalf("short list must pass through, got %d", len(got))
	}
}
