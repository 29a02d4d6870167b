package sim

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"multiverse-copilot-backend/internal/config"
	"multiverse-copilot-backend/internal/kb"
	"multiverse-copilot-backend/internal/providers"
	"multiverse-copilot-backend/models"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// fakeLLM routes by prompt shape: spec extraction returns specContent (or an
// error when unset), everything else pops the next scripted response.
type fakeLLM struct {
	specContent  string
	simResponses []providers.LLMResponse
	repairSeen   int
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string) (*providers.LLMResponse, error) {
	if strings.HasPrefix(prompt, "Extract a structured decision specification") {
		if f.specContent == "" {
			return nil, errors.New("spec provider down")
		}
		return &providers.LLMResponse{Content: f.specContent, ModelID: "fake-spec"}, nil
	}
	if strings.HasPrefix(prompt, "Repair the following JSON") {
		f.repairSeen++
	}
	if len(f.simResponses) == 0 {
		return nil, errors.New("provider exhausted")
	}
	resp := f.simResponses[0]
	f.simResponses = f.simResponses[1:]
	return &resp, nil
}

func newSimTestService(t *testing.T, llm providers.LLMProvider) *Service {
	t.Helper()
	dir := t.TempDir()
	store, err := kb.NewStore(filepath.Join(dir, "kb.sqlite3"), filepath.Join(dir, "kb.index"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		UseMockProviders: true,
		KBChunkSize:      800,
		KBChunkOverlap:   120,
		KBContextLimit:   8,
	}
	return NewService(cfg, llm, kb.NewService(cfg, store, stubEmbedder{}))
}

// simPayload builds a schema-complete result; branch maps only need the
// fields a test cares about, the rest are filled with empty collections.
func simPayload(t *testing.T, branches []map[string]any) string {
	t.Helper()
	for _, b := range branches {
		for _, field := range []string{"key_events", "risk_clusters", "stress_points", "failure_triggers", "mitigations"} {
			if _, ok := b[field]; !ok {
				b[field] = []any{}
			}
		}
		if _, ok := b["KPIs"]; !ok {
			b["KPIs"] = map[string]any{}
		}
	}
	data, err := json.Marshal(map[string]any{
		"input_summary":          "summary",
		"assumptions":            []string{},
		"overall_recommendation": "proceed",
		"branches":               branches,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(data)
}

func intPtr(v int) *int { return &v }

func TestRunRepairPassRecovers(t *testing.T) {
	valid := simPayload(t, []map[string]any{
		{"branch_name": "base", "narrative": "steady", "stability_score": 60.0},
	})
	llm := &fakeLLM{
		simResponses: []providers.LLMResponse{
			{Content: `{"overall_recommendation":"x"}`, ModelID: "m1",
				LatencyMS: 100, TokensInput: intPtr(10), TokensOutput: intPtr(5), RetryCount: 1},
			{Content: valid, ModelID: "m2",
				LatencyMS: 50, TokensInput: intPtr(20), TokensOutput: intPtr(7), RetryCount: 2},
		},
	}
	svc := newSimTestService(t, llm)

	result, err := svc.Run(context.Background(), &models.SimulateRequest{DecisionText: "launch"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if llm.repairSeen != 1 {
		t.Fatalf("expected exactly one repair call, got %d", llm.repairSeen)
	}
	if !result.Audit.UsedRepairPass {
		t.Fatal("audit must record the repair pass")
	}
	if result.Audit.LatencyMS != 150 {
		t.Fatalf("latency not accumulated: %d", result.Audit.LatencyMS)
	}
	if result.Audit.TokensInput == nil || *result.Audit.TokensInput != 30 {
		t.Fatalf("input tokens not accumulated: %v", result.Audit.TokensInput)
	}
	if result.Audit.TokensOutput == nil || *result.Audit.TokensOutput != 12 {
		t.Fatalf("output tokens not accumulated: %v", result.Audit.TokensOutput)
	}
	if result.Audit.RetryCount != 3 {
		t.Fatalf("retry counts not accumulated: %d", result.Audit.RetryCount)
	}
	if result.Audit.ModelID != "m2" {
		t.Fatalf("audit model id should come from the repaired call, got %q", result.Audit.ModelID)
	}
}

func TestRunRepairsBranchMissingCollections(t *testing.T) {
	// Structurally plausible but incomplete: the branch carries only a name
	// and narrative, so it must be sent through the repair pass, not accepted
	// with nil collections.
	incomplete := `{"input_summary":"s","assumptions":[],"overall_recommendation":"r",` +
		`"branches":[{"branch_name":"base","narrative":"n"}]}`
	valid := simPayload(t, []map[string]any{
		{"branch_name": "base", "narrative": "steady", "stability_score": 60.0},
	})
	llm := &fakeLLM{
		simResponses: []providers.LLMResponse{
			{Content: incomplete, ModelID: "m1"},
			{Content: valid, ModelID: "m2"},
		},
	}
	svc := newSimTestService(t, llm)

	result, err := svc.Run(context.Background(), &models.SimulateRequest{DecisionText: "launch"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if llm.repairSeen != 1 {
		t.Fatalf("incomplete branch must trigger the repair pass, repair calls = %d", llm.repairSeen)
	}
	if !result.Audit.UsedRepairPass {
		t.Fatal("audit must record the repair pass")
	}
}

func TestRunRepairPassKeepsUnknownTokenCounts(t *testing.T) {
	valid := simPayload(t, []map[string]any{
		{"branch_name": "base", "narrative": "steady", "stability_score": 60.0},
	})
	llm := &fakeLLM{
		simResponses: []providers.LLMResponse{
			{Content: `{"overall_recommendation":"x"}`, ModelID: "m1", LatencyMS: 10},
			{Content: valid, ModelID: "m2", LatencyMS: 20},
		},
	}
	svc := newSimTestService(t, llm)

	result, err := svc.Run(context.Background(), &models.SimulateRequest{DecisionText: "launch"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Audit.UsedRepairPass {
		t.Fatal("expected repair pass")
	}
	if result.Audit.TokensInput != nil || result.Audit.TokensOutput != nil {
		t.Fatalf("unreported token counts must stay absent, got in=%v out=%v",
			result.Audit.TokensInput, result.Audit.TokensOutput)
	}
}

func TestSumTokens(t *testing.T) {
	if got := sumTokens(nil, nil); got != nil {
		t.Fatalf("both nil must stay nil, got %v", *got)
	}
	if got := sumTokens(intPtr(3), nil); got == nil || *got != 3 {
		t.Fatalf("one-sided sum wrong: %v", got)
	}
	if got := sumTokens(nil, intPtr(4)); got == nil || *got != 4 {
		t.Fatalf("one-sided sum wrong: %v", got)
	}
	if got := sumTokens(intPtr(3), intPtr(4)); got == nil || *got != 7 {
		t.Fatalf("two-sided sum wrong: %v", got)
	}
}

func TestRunSecondValidationFailurePropagates(t *testing.T) {
	llm := &fakeLLM{
		simResponses: []providers.LLMResponse{
			{Content: `{"overall_recommendation":"x"}`, ModelID: "m1"},
			{Content: `still broken`, ModelID: "m1"},
		},
	}
	svc := newSimTestService(t, llm)

	_, err := svc.Run(context.Background(), &models.SimulateRequest{DecisionText: "launch"})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError after failed repair, got %v", err)
	}
	if llm.repairSeen != 1 {
		t.Fatalf("expected exactly one repair attempt, got %d", llm.repairSeen)
	}
}

func TestRunProviderErrorPropagates(t *testing.T) {
	svc := newSimTestService(t, &fakeLLM{})

	_, err := svc.Run(context.Background(), &models.SimulateRequest{DecisionText: "launch"})
	if err == nil {
		t.Fatal("expected provider error")
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		t.Fatal("provider errors must not surface as validation errors")
	}
}

func TestRunScoresAndRanks(t *testing.T) {
	payload := simPayload(t, []map[string]any{
		{
			"branch_name": "optimistic", "narrative": "steady", "stability_score": 80.0,
			"risk_clusters": []map[string]any{
				{"tag": "talent", "severity": "low", "confidence": 0.9},
				{"tag": "cash", "severity": "critical", "confidence": 0.2},
			},
		},
		{
			"branch_name": "pessimistic", "narrative": "steady", "stability_score": 40.0,
			"risk_clusters": []map[string]any{
				{"tag": "churn", "severity": "high", "confidence": 0.5},
				{"tag": "supply", "severity": "high", "confidence": 0.9},
			},
		},
	})
	llm := &fakeLLM{simResponses: []providers.LLMResponse{{Content: payload, ModelID: "m1"}}}
	svc := newSimTestService(t, llm)

	result, err := svc.Run(context.Background(), &models.SimulateRequest{DecisionText: "launch"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.DecisionID == "" {
		t.Fatal("missing decision_id must be generated")
	}
	if result.Audit.UsedRepairPass {
		t.Fatal("no repair pass expected for valid primary output")
	}
	if !result.Audit.UsedMock {
		t.Fatal("audit must reflect mock provider mode")
	}

	for i := range result.Branches {
		b := &result.Branches[i]
		if b.LLMStabilityScore == nil || b.ComputedStabilityScore == nil || b.FinalStabilityScore == nil {
			t.Fatalf("branch %q missing score fields", b.BranchName)
		}
		wantFinal := models.FuseScores(*b.ComputedStabilityScore, *b.LLMStabilityScore)
		if *b.FinalStabilityScore != wantFinal {
			t.Fatalf("branch %q final = %v, want fusion %v", b.BranchName, *b.FinalStabilityScore, wantFinal)
		}
		if *b.StabilityScore != *b.FinalStabilityScore {
			t.Fatalf("deprecated alias must mirror final score")
		}
		for j := 1; j < len(b.RiskClusters); j++ {
			if b.RiskClusters[j-1].SeverityLevel < b.RiskClusters[j].SeverityLevel {
				t.Fatalf("branch %q risks not sorted by severity", b.BranchName)
			}
		}
	}

	if len(result.Top3Risks) != 3 {
		t.Fatalf("expected 3 top risks, got %d", len(result.Top3Risks))
	}
	if result.Top3Risks[0].Tag != "cash" || result.Top3Risks[0].SeverityLevel != 4 {
		t.Fatalf("worst risk must rank first: %+v", result.Top3Risks[0])
	}
	if result.Top3Risks[1].Tag != "supply" {
		t.Fatalf("equal severities must order by confidence: %+v", result.Top3Risks[1])
	}
	if result.Top3Risks[2].Tag != "churn" {
		t.Fatalf("unexpected third risk: %+v", result.Top3Risks[2])
	}

	if result.RecommendedPath == nil || result.RecommendedPath.BranchName != "optimistic" {
		t.Fatalf("recommended path should name the strongest branch: %+v", result.RecommendedPath)
	}
	if result.ExecutiveSummary == "" {
		t.Fatal("executive summary must be generated when absent")
	}
	if got := len(strings.Fields(result.ExecutiveSummary)); got > maxSummaryWords {
		t.Fatalf("summary exceeds %d words: %d", maxSummaryWords, got)
	}
}

func TestExtractDecisionSpecFallsBackOnError(t *testing.T) {
	svc := newSimTestService(t, &fakeLLM{})

	spec := svc.ExtractDecisionSpec(context.Background(), "should we expand next quarter")
	if spec == nil {
		t.Fatal("fallback spec must never be nil")
	}
	if spec.TimeHorizon != "next quarter" {
		t.Fatalf("quarter heuristic not applied: %q", spec.TimeHorizon)
	}
	if len(spec.Options) != 3 {
		t.Fatalf("fallback options missing: %v", spec.Options)
	}
}

func TestExtractDecisionSpecFallsBackOnInvalidPayload(t *testing.T) {
	svc := newSimTestService(t, &fakeLLM{specContent: "not json at all"})

	spec := svc.ExtractDecisionSpec(context.Background(), "pivot to enterprise sales")
	if spec.DecisionTitle != "pivot to enterprise sales" {
		t.Fatalf("expected deterministic fallback title, got %q", spec.DecisionTitle)
	}
}

func TestDeterministicDecisionSpecTruncatesTitle(t *testing.T) {
	long := strings.Repeat("word ", 40)
	spec := deterministicDecisionSpec(long)
	runes := []rune(spec.DecisionTitle)
	if len(runes) != 83 {
		t.Fatalf("expected 80 runes plus ellipsis, got %d", len(runes))
	}
	if !strings.HasSuffix(spec.DecisionTitle, "...") {
		t.Fatalf("truncated title missing ellipsis: %q", spec.DecisionTitle)
	}
	if spec.TimeHorizon != "12 months" {
		t.Fatalf("default horizon wrong: %q", spec.TimeHorizon)
	}
}

func TestBestBranchTieFirstWins(t *testing.T) {
	score := 70.0
	same := 70.0
	result := &models.SimulationResult{Branches: []models.Branch{
		{BranchName: "first", FinalStabilityScore: &score},
		{BranchName: "second", FinalStabilityScore: &same},
	}}
	if got := bestBranch(result); got.BranchName != "first" {
		t.Fatalf("tie must keep first occurrence, got %q", got.BranchName)
	}
}

func TestTruncateWords(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha ", 200))
	out := truncateWords(text, 150)
	if got := len(strings.Fields(out)); got != 150 {
		t.Fatalf("expected 150 words, got %d", got)
	}
	short := "just a few words"
	if truncateWords(short, 150) != short {
		t.Fatal("short text must pass through unchanged")
	}
}
