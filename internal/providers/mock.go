package providers

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"multiverse-copilot-backend/models"

	"github.com/google/uuid"
)

// MockLLM answers deterministically without any network call. Simulation
// and decision-spec prompts get canned conforming payloads; anything else
// gets a payload derived from the prompt hash so tests can assert identity.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

const mockModelID = "mock.gemini-flash"

func intPtr(v int) *int { return &v }

func (m *MockLLM) GenerateJSON(ctx context.Context, prompt string) (*LLMResponse, error) {
	switch {
	// Order matters: the simulation prompt embeds the extracted decision
	// spec, so it contains decision_title and time_horizon too.
	case strings.Contains(prompt, "branch_name"):
		content, _ := json.Marshal(mockSimulationPayload())
		return &LLMResponse{
			Content:      string(content),
			ModelID:      mockModelID,
			LatencyMS:    24,
			TokensInput:  intPtr(600),
			TokensOutput: intPtr(420),
		}, nil

	case strings.Contains(prompt, "decision_title") && strings.Contains(prompt, "time_horizon"):
		payload := models.DecisionSpec{
			DecisionTitle:  "Acquire Competitor X",
			Objective:      "Evaluate acquisition under recession conditions",
			Options:        []string{"acquire", "strategic partnership", "defer"},
			Constraints:    []string{"cash runway", "regulatory complexity"},
			TimeHorizon:    "next quarter",
			MarketContext:  "recessionary demand pressure",
			KeyAssumptions: []string{"financing available", "integration team capacity"},
		}
		content, _ := json.Marshal(payload)
		return &LLMResponse{
			Content:      string(content),
			ModelID:      mockModelID,
			LatencyMS:    10,
			TokensInput:  intPtr(40),
			TokensOutput: intPtr(30),
		}, nil

	default:
		h := sha256.Sum256([]byte(prompt))
		content, _ := json.Marshal(map[string]string{
			"prompt_hash": fmt.Sprintf("%x", h[:6]),
			"status":      "ok",
		})
		return &LLMResponse{
			Content:      string(content),
			ModelID:      mockModelID,
			LatencyMS:    10,
			TokensInput:  intPtr(10),
			TokensOutput: intPtr(8),
		}, nil
	}
}

func score(v float64) *float64 { return &v }

func conf(v float64) *float64 { return &v }

func mockSimulationPayload() models.SimulationResult {
	return models.SimulationResult{
		DecisionID:   uuid.NewString(),
		InputSummary: "Simulate acquiring Competitor X under recession next quarter.",
		Assumptions: []string{
			"Credit markets tighten by 20%",
			"Competitor X valuation drops 12%",
			"Integration costs peak in Q2",
		},
		Branches: []models.Branch{
			{
				BranchName: "optimistic",
				Narrative:  "Fast integration unlocks cross-sell gains.",
				KeyEvents:  []string{"Deal closes in 45 days", "Key talent retained", "Synergies realized by Q3"},
				KPIs:       &models.KPISet{Revenue: 182.5, Margin: 19.2, Burn: 8.5, Headcount: 1240, Churn: 2.8},
				RiskClusters: []models.RiskCluster{
					{Tag: "integration", Severity: "medium", Confidence: conf(0.7)},
				},
				StressPoints:    []models.StressPoint{{Resource: "cash", Threshold: "burn > 12m/month"}},
				FailureTriggers: []models.FailureTrigger{{Condition: "Retention < 85%", Impact: "synergy delay 2 quarters"}},
				Mitigations:     []models.Mitigation{{Rank: 1, Action: "Retention bonuses for top 10% talent"}},
				StabilityScore:  score(82),
			},
			{
				BranchName: "base",
				Narrative:  "Moderate slowdown with manageable integration drag.",
				KeyEvents:  []string{"Deal closes in 60 days", "Two systems migrated", "Gross margin flat"},
				KPIs:       &models.KPISet{Revenue: 160.2, Margin: 15.4, Burn: 11.1, Headcount: 1190, Churn: 4.2},
				RiskClusters: []models.RiskCluster{
					{Tag: "financing", Severity: "high", Confidence: conf(0.6)},
				},
				StressPoints:    []models.StressPoint{{Resource: "debt covenant", Threshold: "net leverage > 3.5x"}},
				FailureTriggers: []models.FailureTrigger{{Condition: "Revenue miss > 10%", Impact: "refinancing risk"}},
				Mitigations:     []models.Mitigation{{Rank: 1, Action: "Stage payments tied to post-close KPI gates"}},
				StabilityScore:  score(63),
			},
			{
				BranchName: "pessimistic",
				Narrative:  "Recession deepens and integration stalls.",
				KeyEvents:  []string{"Credit spreads widen", "Customer churn spikes", "Operational overlap persists"},
				KPIs:       &models.KPISet{Revenue: 133.9, Margin: 10.1, Burn: 15.7, Headcount: 1140, Churn: 8.9},
				RiskClusters: []models.RiskCluster{
					{Tag: "liquidity", Severity: "critical", Confidence: conf(0.8)},
				},
				StressPoints:    []models.StressPoint{{Resource: "cash runway", Threshold: "< 8 months"}},
				FailureTriggers: []models.FailureTrigger{{Condition: "Runway < 6 months", Impact: "forced divestiture"}},
				Mitigations:     []models.Mitigation{{Rank: 1, Action: "Pre-negotiate bridge facility before close"}},
				StabilityScore:  score(38),
			},
		},
		OverallRecommendation: "Proceed only with staged close terms and pre-funded liquidity buffer.",
	}
}

// MockEmbeddings derives a fixed-dimension vector from the text hash, so
// identical text always lands on identical vectors.
type MockEmbeddings struct {
	Dim int
}

func NewMockEmbeddings() *MockEmbeddings {
	return &MockEmbeddings{Dim: 32}
}

func (m *MockEmbeddings) embed(text string) []float32 {
	h := sha256.Sum256([]byte(text))
	vals := make([]float64, m.Dim)
	var sum float64
	for i := 0; i < m.Dim; i++ {
		vals[i] = float64(h[i%len(h)]) / 255.0
		sum += vals[i] * vals[i]
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	vec := make([]float32, m.Dim)
	for i, v := range vals {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (m *MockEmbeddings) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.embed(text)
	}
	return vectors, nil
}

func (m *MockEmbeddings) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.embed(text), nil
}

// MockSpeech echoes chunk sizes back as partial transcripts
type MockSpeech struct{}

func NewMockSpeech() *MockSpeech {
	return &MockSpeech{}
}

func (m *MockSpeech) CreateSession() string {
	return uuid.NewString()
}

func (m *MockSpeech) ProcessAudioChunk(ctx context.Context, sessionID string, audio []byte) (*SpeechFrame, error) {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return &SpeechFrame{
		PartialTranscript: fmt.Sprintf("[%s] partial transcript, bytes=%d", short, len(audio)),
		FinalTranscript:   "Simulate acquiring Competitor X under recession next quarter.",
	}, nil
}

// MockAgent pretends to run a playbook and reflects the input back
type MockAgent struct{}

func NewMockAgent() *MockAgent {
	return &MockAgent{}
}

func (m *MockAgent) RunPlaybook(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	return map[string]any{
		"playbook": name,
		"status":   "stubbed",
		"summary":  "Mock automation agent executed.",
		"input":    payload,
	}, nil
}
