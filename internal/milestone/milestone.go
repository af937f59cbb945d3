// Package milestone validates milestone percentage budgets and
// computes partial payouts against a quest's final reward.
package milestone

import (
	"fmt"
	"math"

	"github.com/Lucidreline/leveling/internal/model"
)

// ValidationError describes why a milestone set was rejected. It is
// surfaced synchronously at the mutation boundary; no partial set is
// ever persisted.
type ValidationError struct {
	Total  float64
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validate checks every percentage is inside [0,100] and the set's
// total does not exceed 100. It must run on every mutation of a
// milestone set (add, remove, edit) before persisting. The returned
// total is the summed percentage, valid or not.
func Validate(ms []model.Milestone) (float64, error) {
	total := 0.0
	for _, m := range ms {
		total += m.RewardPercentage
	}
	for _, m := range ms {
		if m.RewardPercentage < 0 || m.RewardPercentage > 100 {
			return total, &ValidationError{
				Total:  total,
				Reason: "each milestone percentage must be between 0 and 100",
			}
		}
	}
	if total > 100 {
		return total, &ValidationError{
			Total:  total,
			Reason: fmt.Sprintf("milestone percentages total %.0f%%, which exceeds 100%%", total),
		}
	}
	return total, nil
}

// PayoutForMilestone is the XP a single milestone pays: its literal
// percentage of the final reward.
func PayoutForMilestone(finalReward int, percent float64) int {
	pct := clampPercent(percent)
	return int(math.Round(float64(finalReward) * pct / 100))
}

// PayoutForCompletion is the remainder paid when the quest itself is
// toggled complete: whatever the milestones did not already cover.
func PayoutForCompletion(finalReward int, totalPercent float64) int {
	t := clampPercent(totalPercent)
	return int(math.Round(float64(finalReward) * (1 - t/100)))
}

func clampPercent(p float64) float64 {
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
