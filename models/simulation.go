package models

import (
	"math"
	"strings"
	"time"
)

// severityMap normalizes free-form severity synonyms to the canonical
// label and its numeric level. Unrecognized values fall back to medium/2.
var severityMap = map[string]struct {
	Label string
	Level int
}{
	"low":      {"low", 1},
	"minor":    {"low", 1},
	"medium":   {"medium", 2},
	"moderate": {"medium", 2},
	"high":     {"high", 3},
	"severe":   {"high", 3},
	"critical": {"critical", 4},
	"urgent":   {"critical", 4},
}

// MaxBranches caps the number of scenario branches in any simulation result.
const MaxBranches = 6

// KPISet holds the per-branch business indicators
type KPISet struct {
	Revenue   float64 `json:"revenue"`
	Margin    float64 `json:"margin"`
	Burn      float64 `json:"burn"`
	Headcount int     `json:"headcount"`
	Churn     float64 `json:"churn"`
}

// RiskCluster is one named risk within a branch
type RiskCluster struct {
	Tag           string   `json:"tag"`
	Severity      string   `json:"severity"`
	SeverityLevel int      `json:"severity_level"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

type StressPoint struct {
	Resource  string `json:"resource"`
	Threshold string `json:"threshold"`
}

type FailureTrigger struct {
	Condition string `json:"condition"`
	Impact    string `json:"impact"`
}

type Mitigation struct {
	Rank   int    `json:"rank"`
	Action string `json:"action"`
}

// Branch is one simulated future scenario. KPIs is a pointer so a payload
// that omits the object entirely can be told apart from all-zero indicators.
type Branch struct {
	BranchName      string           `json:"branch_name"`
	Narrative       string           `json:"narrative"`
	KeyEvents       []string         `json:"key_events"`
	KPIs            *KPISet          `json:"KPIs"`
	RiskClusters    []RiskCluster    `json:"risk_clusters"`
	StressPoints    []StressPoint    `json:"stress_points"`
	FailureTriggers []FailureTrigger `json:"failure_triggers"`
	Mitigations     []Mitigation     `json:"mitigations"`

	LLMStabilityScore      *float64 `json:"llm_stability_score,omitempty"`
	ComputedStabilityScore *float64 `json:"computed_stability_score,omitempty"`
	FinalStabilityScore    *float64 `json:"final_stability_score,omitempty"`
	// StabilityScore is the deprecated single-score field kept for
	// existing clients; it mirrors FinalStabilityScore on output.
	StabilityScore *float64 `json:"stability_score,omitempty"`
}

// AuditMeta records provenance for one simulation run. When a repair pass
// happens it accumulates latency and token counts across both calls.
type AuditMeta struct {
	Timestamp         time.Time `json:"timestamp"`
	ModelID           string    `json:"model_id"`
	LatencyMS         int       `json:"latency_ms"`
	TokensInput       *int      `json:"tokens_input,omitempty"`
	TokensOutput      *int      `json:"tokens_output,omitempty"`
	RetryCount        int       `json:"retry_count"`
	UsedRepairPass    bool      `json:"used_repair_pass"`
	UsedMock          bool      `json:"used_mock"`
	EmbeddingDocsUsed int       `json:"embedding_docs_used"`
}

type TopRisk struct {
	BranchName    string   `json:"branch_name"`
	Tag           string   `json:"tag"`
	Severity      string   `json:"severity"`
	SeverityLevel int      `json:"severity_level"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

type RecommendedPath struct {
	BranchName string `json:"branch_name"`
	Reasoning  string `json:"reasoning"`
}

// SimulationResult is the full decision-simulation payload returned to callers
type SimulationResult struct {
	DecisionID            string           `json:"decision_id"`
	InputSummary          string           `json:"input_summary"`
	Assumptions           []string         `json:"assumptions"`
	Branches              []Branch         `json:"branches"`
	ExecutiveSummary      string           `json:"executive_summary"`
	Top3Risks             []TopRisk        `json:"top_3_risks"`
	RecommendedPath       *RecommendedPath `json:"recommended_path,omitempty"`
	OverallRecommendation string           `json:"overall_recommendation"`
	Audit                 AuditMeta        `json:"audit"`
}

// DecisionSpec is the structured extraction of free-form decision text.
// Derived per request, never persisted.
type DecisionSpec struct {
	DecisionTitle  string   `json:"decision_title"`
	Objective      string   `json:"objective"`
	Options        []string `json:"options"`
	Constraints    []string `json:"constraints"`
	TimeHorizon    string   `json:"time_horizon"`
	MarketContext  string   `json:"market_context"`
	KeyAssumptions []string `json:"key_assumptions"`
}

// NormalizeSeverity maps a free-form severity string to its canonical
// label and level
func NormalizeSeverity(value string) (string, int) {
	norm := strings.ToLower(strings.TrimSpace(value))
	if entry, ok := severityMap[norm]; ok {
		return entry.Label, entry.Level
	}
	return "medium", 2
}

// NormalizeBranch applies construction-time normalization to a freshly
// decoded branch: canonical severities and the deprecated stability_score
// alias. Called right after deserialization instead of hiding the work in
// unmarshal hooks, so the transformation stays independently testable.
func NormalizeBranch(b *Branch) {
	for i := range b.RiskClusters {
		label, level := NormalizeSeverity(b.RiskClusters[i].Severity)
		b.RiskClusters[i].Severity = label
		b.RiskClusters[i].SeverityLevel = level
	}
	if b.LLMStabilityScore == nil && b.StabilityScore != nil {
		b.LLMStabilityScore = b.StabilityScore
	}
}

// FuseScores combines the deterministic and model-supplied stability scores
// with fixed 0.6/0.4 weights, clamped to [0,100].
func FuseScores(computed, llm float64) float64 {
	return Round2(clamp(0.6*computed+0.4*llm, 0, 100))
}

// LimitBranches truncates a branch list to MaxBranches, order preserved
func LimitBranches(branches []Branch) []Branch {
	if len(branches) > MaxBranches {
		return branches[:MaxBranches]
	}
	return branches
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
