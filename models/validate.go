package models

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports a simulation payload that does not conform to the
// result schema. It drives the 422 response code and the repair pass.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ParseSimulationResult decodes and validates raw model output against the
// SimulationResult schema. Branch severities are normalized as part of
// construction. The audit block is engine-owned and overwritten by the
// caller, so model-supplied audit content is ignored.
func ParseSimulationResult(data []byte) (*SimulationResult, error) {
	var result SimulationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, validationErrorf("malformed JSON: %v", err)
	}
	if result.InputSummary == "" {
		return nil, validationErrorf("input_summary is required")
	}
	if result.OverallRecommendation == "" {
		return nil, validationErrorf("overall_recommendation is required")
	}
	if result.Assumptions == nil {
		return nil, validationErrorf("assumptions is required")
	}
	if result.Branches == nil {
		return nil, validationErrorf("branches is required")
	}
	if len(result.Branches) > MaxBranches {
		return nil, validationErrorf("branches exceeds maximum of %d (got %d)", MaxBranches, len(result.Branches))
	}
	for i := range result.Branches {
		b := &result.Branches[i]
		if b.BranchName == "" {
			return nil, validationErrorf("branches[%d].branch_name is required", i)
		}
		if b.Narrative == "" {
			return nil, validationErrorf("branches[%d].narrative is required", i)
		}
		if b.KeyEvents == nil {
			return nil, validationErrorf("branches[%d].key_events is required", i)
		}
		if b.KPIs == nil {
			return nil, validationErrorf("branches[%d].KPIs is required", i)
		}
		if b.RiskClusters == nil {
			return nil, validationErrorf("branches[%d].risk_clusters is required", i)
		}
		if b.StressPoints == nil {
			return nil, validationErrorf("branches[%d].stress_points is required", i)
		}
		if b.FailureTriggers == nil {
			return nil, validationErrorf("branches[%d].failure_triggers is required", i)
		}
		if b.Mitigations == nil {
			return nil, validationErrorf("branches[%d].mitigations is required", i)
		}
		for j, m := range b.Mitigations {
			if m.Rank < 1 {
				return nil, validationErrorf("branches[%d].mitigations[%d].rank must be >= 1", i, j)
			}
		}
		for _, score := range []*float64{b.LLMStabilityScore, b.ComputedStabilityScore, b.FinalStabilityScore, b.StabilityScore} {
			if score != nil && (*score < 0 || *score > 100) {
				return nil, validationErrorf("branches[%d] stability score out of range [0,100]", i)
			}
		}
		for j, r := range b.RiskClusters {
			if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 1) {
				return nil, validationErrorf("branches[%d].risk_clusters[%d].confidence out of range [0,1]", i, j)
			}
		}
		NormalizeBranch(b)
	}
	return &result, nil
}

// ParseDecisionSpec decodes and validates model output for the structured
// decision-spec extraction
func ParseDecisionSpec(data []byte) (*DecisionSpec, error) {
	var spec DecisionSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, validationErrorf("malformed JSON: %v", err)
	}
	if spec.DecisionTitle == "" {
		return nil, validationErrorf("decision_title is required")
	}
	if spec.Objective == "" {
		return nil, validationErrorf("objective is required")
	}
	if spec.TimeHorizon == "" {
		return nil, validationErrorf("time_horizon is required")
	}
	return &spec, nil
}
