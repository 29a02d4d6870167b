package sim

import (
	"strings"

	"multiverse-copilot-backend/models"
)

var declineMarkers = []string{"revenue decline", "revenue drop", "decline", "down", "miss"}

var manageableMarkers = []string{"<", "<=", "less than", "below", "under"}

// ComputeStabilityScore derives a deterministic 0-100 score from branch
// content. The constants are definitional: they must not be re-tuned or the
// score loses comparability across runs.
func ComputeStabilityScore(b *models.Branch) float64 {
	score := 70.0

	// Penalize high-severity risks.
	for _, risk := range b.RiskClusters {
		score -= float64(risk.SeverityLevel) * 3.5
	}

	// Penalize too many failure triggers.
	if len(b.FailureTriggers) > 2 {
		score -= float64(len(b.FailureTriggers)-2) * 5.0
	}

	// Penalize negative margin or clear revenue decline signals.
	if b.KPIs != nil && b.KPIs.Margin < 0 {
		score -= 12.0
	}
	if hasRevenueDecline(b) {
		score -= 8.0
	}

	// Boost strong mitigations.
	strong := 0
	for _, m := range b.Mitigations {
		if m.Rank <= 2 && len(strings.TrimSpace(m.Action)) >= 18 {
			strong++
		}
	}
	score += minF(12.0, float64(strong)*4.0)

	// Boost diversification across risk tags.
	distinctTags := map[string]struct{}{}
	for _, risk := range b.RiskClusters {
		tag := strings.ToLower(strings.TrimSpace(risk.Tag))
		if tag != "" {
			distinctTags[tag] = struct{}{}
		}
	}
	if len(distinctTags) >= 2 {
		score += 6.0
	}

	// Boost manageable stress thresholds.
	manageable := 0
	for _, sp := range b.StressPoints {
		if isManageableThreshold(sp.Threshold) {
			manageable++
		}
	}
	score += minF(8.0, float64(manageable)*2.0)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return models.Round2(score)
}

func hasRevenueDecline(b *models.Branch) bool {
	text := strings.ToLower(b.Narrative + " " + strings.Join(b.KeyEvents, " "))
	for _, marker := range declineMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func isManageableThreshold(threshold string) bool {
	t := strings.ToLower(threshold)
	for _, marker := range manageableMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
