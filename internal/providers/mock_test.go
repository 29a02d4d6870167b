package providers

import (
	"context"
	"testing"

	"multiverse-copilot-backend/models"
)

func TestMockLLMSimulationPayloadConforms(t *testing.T) {
	llm := NewMockLLM()

	resp, err := llm.GenerateJSON(context.Background(),
		"Each branch must include: branch_name,narrative\nDecision spec: {\"decision_title\":\"x\",\"time_horizon\":\"y\"}")
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}

	result, err := models.ParseSimulationResult([]byte(resp.Content))
	if err != nil {
		t.Fatalf("mock simulation payload failed validation: %v", err)
	}
	if len(result.Branches) != 3 {
		t.Fatalf("expected 3 canned branches, got %d", len(result.Branches))
	}
	// The simulation prompt embeds spec field names; the branch instruction
	// must still win the dispatch.
	if result.Branches[0].BranchName != "optimistic" {
		t.Fatalf("unexpected first branch: %q", result.Branches[0].BranchName)
	}
}

func TestMockLLMDecisionSpecDispatch(t *testing.T) {
	llm := NewMockLLM()

	resp, err := llm.GenerateJSON(context.Background(),
		"Required fields: decision_title,objective,options,constraints,time_horizon")
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	spec, err := models.ParseDecisionSpec([]byte(resp.Content))
	if err != nil {
		t.Fatalf("mock spec payload failed validation: %v", err)
	}
	if spec.TimeHorizon != "next quarter" {
		t.Fatalf("unexpected horizon: %q", spec.TimeHorizon)
	}
}

func TestMockEmbeddingsDeterministicAndNormalized(t *testing.T) {
	emb := NewMockEmbeddings()
	ctx := context.Background()

	a, err := emb.EmbedQuery(ctx, "same text")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	b, err := emb.EmbedQuery(ctx, "same text")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings not deterministic at dim %d", i)
		}
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if norm < 0.99 || norm > 1.01 {
		t.Fatalf("embedding not unit length: %v", norm)
	}

	batch, err := emb.EmbedTexts(ctx, []string{"one", "two"})
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(batch))
	}
}
