package audit

import "github.com/fleetguard/fleetguard/pkg/store"

// MaxRiskScore bounds every risk score
const MaxRiskScore = 100

// Risk tiers reported by RiskSummary
const (
	TierLow    = "low"
	TierMedium = "medium"
	TierHigh   = "high"
)

const (
	riskLevelWeight = 12
	deniedPenalty   = 5
)

// RiskScore derives the 0-100 score of an entry. The score is the action
// weight plus 12 per permission risk level plus 5 for denials, capped at
// 100. An emergency override always scores 100. For a fixed action the score
// is strictly increasing in riskLevel over 0..5.
func RiskScore(action Action, riskLevel int, denied, emergencyOverride bool) int {
	if emergencyOverride {
		return MaxRiskScore
	}
	if riskLevel < 0 {
		riskLevel = 0
	}

	score := actionWeights[action] + riskLevelWeight*riskLevel
	if denied {
		score += deniedPenalty
	}
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	return score
}

// Tier buckets a risk score
func Tier(score int) string {
	switch {
	case score >= store.RiskTierHigh:
		return TierHigh
	case score >= store.RiskTierMedium:
		return TierMedium
	default:
		return TierLow
	}
}
