// internal/rules/risk.go
package rules

import "github.com/solatis/overseer/internal/types"

/*
 * Risk scoring.
 *
 * score = sum(riskWeight * m) / sum(m), m = (priority + 100) / 100
 *
 * A priority-weighted average of the matching rules' risk weights. The +100
 * offset keeps the multiplier at 1 or more for priority 0, so every match
 * counts. High-priority rules pull the average toward their own weight even
 * when few of them match. Result is clamped to [0, MaxRiskScore]; no match
 * scores 0.
 */

// priorityMultiplier returns the weight of a rule's contribution.
// Out-of-range priorities are clamped to [0, MaxPriority] first.
func priorityMultiplier(priority int) float64 {
	if priority < 0 {
		priority = 0
	} else if priority > types.MaxPriority {
		priority = types.MaxPriority
	}
	return float64(priority+100) / 100
}

// ScoreRisk aggregates the risk weights of matched rules.
func ScoreRisk(matched []types.Rule) (float64, types.RiskLevel) {
	var weighted, weights float64
	for i := range matched {
		m := priorityMultiplier(matched[i].Priority)
		weighted += float64(matched[i].RiskWeight) * m
		weights += m
	}

	score := 0.0
	if weights > 0 {
		score = weighted / weights
	}
	score = clampScore(score)
	return score, types.RiskLevelFor(score)
}

// clampScore bounds score to [0, MaxRiskScore].
func clampScore(score float64) float64 {
	switch {
	case score != score: // NaN
		return 0
	case score < 0:
		return 0
	case score > types.MaxRiskScore:
		return types.MaxRiskScore
	default:
		return score
	}
}
