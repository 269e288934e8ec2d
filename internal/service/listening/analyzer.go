package listening

import (
	"math"
)

const (
	// MaxTrends bounds the number of trends produced by one synthesis
	MaxTrends = 15

	minGrowthRate = 10
	maxGrowthRate = 200

	// modelGrowthFloor is the minimum growth rate assigned to model-synthesized trends
	modelGrowthFloor = 15

	// defaultReach stands in for a missing or non-positive model reach estimate
	defaultReach = 1000
)

// EngagementScore normalizes a raw engagement sum. It is never negative.
func EngagementScore(engagement int) int {
	score := int(math.Round(float64(engagement) / 10))
	if score < 0 {
		return 0
	}
	return score
}

// GrowthRate estimates a growth percentage from engagement, clamped to
// [floor, 200]. floor itself is raised to at least 10.
func GrowthRate(engagement, floor int) int {
	if floor < minGrowthRate {
		floor = minGrowthRate
	}
	rate := math.Round(float64(engagement) / 100 * 2)
	return clampGrowth(rate, floor)
}

func clampGrowth(rate float64, floor int) int {
	if math.IsNaN(rate) || rate < float64(floor) {
		return floor
	}
	if rate > maxGrowthRate {
		return maxGrowthRate
	}
	return int(rate)
}
