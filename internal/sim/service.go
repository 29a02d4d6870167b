package sim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"multiverse-copilot-backend/internal/config"
	"multiverse-copilot-backend/internal/kb"
	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/internal/providers"
	"multiverse-copilot-backend/models"

	"github.com/google/uuid"
)

const maxSummaryWords = 150

// Service runs the decision-simulation pipeline: spec extraction, context
// retrieval, prompt assembly, the validate/repair cycle, deterministic
// re-scoring and ranking.
type Service struct {
	llm     providers.LLMProvider
	kb      *kb.Service
	prompts PromptBuilder
	useMock bool
}

func NewService(cfg *config.Config, llm providers.LLMProvider, kbService *kb.Service) *Service {
	return &Service{
		llm:     llm,
		kb:      kbService,
		useMock: cfg.UseMockProviders,
	}
}

// Run executes one full simulation for the request
func (s *Service) Run(ctx context.Context, req *models.SimulateRequest) (*models.SimulationResult, error) {
	decisionText := req.SourceText()
	spec := s.ExtractDecisionSpec(ctx, decisionText)

	retrieved, err := s.kb.ContextForDocs(ctx, req.ContextDocIDs)
	if err != nil {
		return nil, err
	}

	prompt := s.prompts.Build(decisionText, retrieved, req.Constraints, spec)
	result, audit, err := s.simulate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if result.DecisionID == "" {
		result.DecisionID = uuid.NewString()
	}
	result.Branches = models.LimitBranches(result.Branches)

	for i := range result.Branches {
		branch := &result.Branches[i]
		llmScore := 50.0
		if branch.LLMStabilityScore != nil {
			llmScore = *branch.LLMStabilityScore
		}
		computed := ComputeStabilityScore(branch)
		final := models.FuseScores(computed, llmScore)

		branch.LLMStabilityScore = &llmScore
		branch.ComputedStabilityScore = &computed
		branch.FinalStabilityScore = &final
		branch.StabilityScore = &final

		sort.SliceStable(branch.RiskClusters, func(a, b int) bool {
			return branch.RiskClusters[a].SeverityLevel > branch.RiskClusters[b].SeverityLevel
		})
	}

	result.Top3Risks = buildTopRisks(result)
	result.RecommendedPath = buildRecommendedPath(result)
	if result.ExecutiveSummary == "" {
		result.ExecutiveSummary = buildExecutiveSummary(result)
	}
	result.ExecutiveSummary = truncateWords(result.ExecutiveSummary, maxSummaryWords)

	audit.EmbeddingDocsUsed = len(retrieved)
	audit.UsedMock = s.useMock
	result.Audit = audit
	return result, nil
}

// simulate issues the primary model call and, when validation fails, exactly
// one repair call. A second validation failure propagates the validation
// error; there is no second repair attempt.
func (s *Service) simulate(ctx context.Context, prompt string) (*models.SimulationResult, models.AuditMeta, error) {
	primary, err := s.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, models.AuditMeta{}, err
	}

	outcome := validateSimulationPayload(primary.Content)
	if outcome.state == stateValid {
		return outcome.result, models.AuditMeta{
			Timestamp:    time.Now().UTC(),
			ModelID:      primary.ModelID,
			LatencyMS:    primary.LatencyMS,
			TokensInput:  primary.TokensInput,
			TokensOutput: primary.TokensOutput,
			RetryCount:   primary.RetryCount,
		}, nil
	}

	logger.Warn("simulation payload failed validation, issuing repair pass", "error", outcome.err)
	repairPrompt := s.prompts.BuildRepair(outcome.broken, outcome.err.Error())
	repaired, err := s.llm.GenerateJSON(ctx, repairPrompt)
	if err != nil {
		return nil, models.AuditMeta{}, err
	}

	repairedOutcome := validateSimulationPayload(repaired.Content)
	if repairedOutcome.state != stateValid {
		return nil, models.AuditMeta{}, repairedOutcome.err
	}

	return repairedOutcome.result, models.AuditMeta{
		Timestamp:      time.Now().UTC(),
		ModelID:        repaired.ModelID,
		LatencyMS:      primary.LatencyMS + repaired.LatencyMS,
		TokensInput:    sumTokens(primary.TokensInput, repaired.TokensInput),
		TokensOutput:   sumTokens(primary.TokensOutput, repaired.TokensOutput),
		RetryCount:     primary.RetryCount + repaired.RetryCount,
		UsedRepairPass: true,
	}, nil
}

// ExtractDecisionSpec asks the model for a structured spec and falls back
// to a deterministic heuristic on any parse or provider failure. The
// fallback never fails; extraction problems are not surfaced to callers.
func (s *Service) ExtractDecisionSpec(ctx context.Context, transcript string) *models.DecisionSpec {
	prompt := s.prompts.BuildDecisionSpec(transcript)
	resp, err := s.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		logger.Warn("decision spec extraction call failed, using fallback", "error", err)
		return deterministicDecisionSpec(transcript)
	}
	spec, err := models.ParseDecisionSpec([]byte(resp.Content))
	if err != nil {
		logger.Warn("decision spec payload invalid, using fallback", "error", err)
		return deterministicDecisionSpec(transcript)
	}
	return spec
}

func deterministicDecisionSpec(transcript string) *models.DecisionSpec {
	text := strings.Join(strings.Fields(transcript), " ")
	title := text
	if runes := []rune(text); len(runes) > 80 {
		title = string(runes[:80]) + "..."
	}
	horizon := "12 months"
	if strings.Contains(strings.ToLower(text), "quarter") {
		horizon = "next quarter"
	}
	return &models.DecisionSpec{
		DecisionTitle:  title,
		Objective:      text,
		Options:        []string{"proceed", "delay", "decline"},
		Constraints:    []string{"capital efficiency", "execution risk"},
		TimeHorizon:    horizon,
		MarketContext:  "uncertain macro conditions",
		KeyAssumptions: []string{"market demand remains volatile", "financing remains available"},
	}
}

// buildTopRisks flattens risks across branches and keeps the three worst,
// ordered by severity level then confidence
func buildTopRisks(result *models.SimulationResult) []models.TopRisk {
	flattened := []models.TopRisk{}
	for _, branch := range result.Branches {
		for _, risk := range branch.RiskClusters {
			flattened = append(flattened, models.TopRisk{
				BranchName:    branch.BranchName,
				Tag:           risk.Tag,
				Severity:      risk.Severity,
				SeverityLevel: risk.SeverityLevel,
				Confidence:    risk.Confidence,
			})
		}
	}
	sort.SliceStable(flattened, func(a, b int) bool {
		if flattened[a].SeverityLevel != flattened[b].SeverityLevel {
			return flattened[a].SeverityLevel > flattened[b].SeverityLevel
		}
		return confidenceOrZero(flattened[a].Confidence) > confidenceOrZero(flattened[b].Confidence)
	})
	if len(flattened) > 3 {
		flattened = flattened[:3]
	}
	return flattened
}

func buildRecommendedPath(result *models.SimulationResult) *models.RecommendedPath {
	best := bestBranch(result)
	if best == nil {
		return nil
	}
	reasoning := fmt.Sprintf(
		"%s is preferred because it has the strongest final stability score after deterministic risk adjustments. "+
			"The branch has comparatively manageable stress points and mitigation coverage. "+
			"Execute with milestone-based controls and monitoring on failure triggers.",
		best.BranchName,
	)
	return &models.RecommendedPath{BranchName: best.BranchName, Reasoning: reasoning}
}

func buildExecutiveSummary(result *models.SimulationResult) string {
	best := bestBranch(result)
	if best == nil {
		return "No branches generated."
	}
	tagSet := map[string]struct{}{}
	for _, risk := range best.RiskClusters {
		tagSet[risk.Tag] = struct{}{}
	}
	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	tagList := strings.Join(tags, ", ")
	if tagList == "" {
		tagList = "execution"
	}
	return fmt.Sprintf(
		"Simulation generated %d branches for the stated decision. "+
			"The leading branch is %s with final stability %.2f. "+
			"Top risks concentrate around %s; mitigations should be front-loaded with KPI gates and liquidity safeguards.",
		len(result.Branches), best.BranchName, finalOrZero(best), tagList,
	)
}

// bestBranch returns the branch with the maximum final stability score,
// first occurrence winning ties
func bestBranch(result *models.SimulationResult) *models.Branch {
	var best *models.Branch
	for i := range result.Branches {
		b := &result.Branches[i]
		if best == nil || finalOrZero(b) > finalOrZero(best) {
			best = b
		}
	}
	return best
}

func finalOrZero(b *models.Branch) float64 {
	if b.FinalStabilityScore != nil {
		return *b.FinalStabilityScore
	}
	return 0
}

func confidenceOrZero(c *float64) float64 {
	if c != nil {
		return *c
	}
	return 0
}

// truncateWords cuts text to at most maxWords words; the cut is by word
// count, never by characters
func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}

// sumTokens adds two optional token counts. Both absent stays absent so an
// unreported count never turns into a reported zero.
func sumTokens(a, b *int) *int {
	if a == nil && b == nil {
		return nil
	}
	total := 0
	if a != nil {
		total += *a
	}
	if b != nil {
		total += *b
	}
	return &total
}
