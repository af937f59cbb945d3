package milestone

import (
	"errors"
	"testing"

	"github.com/Lucidreline/leveling/internal/model"
)

func set(pcts ...float64) []model.Milestone {
	out := make([]model.Milestone, 0, len(pcts))
	for _, p := range pcts {
		out = append(out, model.Milestone{RewardPercentage: p})
	}
	return out
}

func TestValidate_AcceptsBudgetedSets(t *testing.T) {
	for _, ms := range [][]model.Milestone{
		nil,
		set(100),
		set(25, 25, 25, 25),
		set(30, 30),
		set(0, 0, 50),
	} {
		if _, err := Validate(ms); err != nil {
			t.Fatalf("set %v rejected: %v", ms, err)
		}
	}
}

func TestValidate_RejectsOverBudgetAndOutOfRange(t *testing.T) {
	for _, ms := range [][]model.Milestone{
		set(60, 50),
		set(101),
		set(-1, 50),
	} {
		_, err := Validate(ms)
		if err == nil {
			t.Fatalf("set %v should be rejected", ms)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %T", err)
		}
	}
}

func TestValidate_ReportsTotal(t *testing.T) {
	total, err := Validate(set(30, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 60 {
		t.Fatalf("total = %v, want 60", total)
	}
}

func TestPayout_ComplementaryPercentagesCoverReward(t *testing.T) {
	for _, reward := range []int{1, 7, 99, 100, 250, 1001} {
		for _, p := range []float64{0, 10, 33, 50, 66.5, 90, 100} {
			sum := PayoutForMilestone(reward, p) + PayoutForMilestone(reward, 100-p)
			if diff := sum - reward; diff < -1 || diff > 1 {
				t.Fatalf("reward %d split at %v%%: payouts sum to %d", reward, p, sum)
			}
		}
	}
}

func TestPayout_QuarterMilestonesLeaveNoRemainder(t *testing.T) {
	for i := 0; i < 4; i++ {
		if got := PayoutForMilestone(100, 25); got != 25 {
			t.Fatalf("quarter milestone paid %d", got)
		}
	}
	if got := PayoutForCompletion(100, 100); got != 0 {
		t.Fatalf("completion after full milestones paid %d", got)
	}
}

func TestPayout_PartialMilestonesLeaveRemainder(t *testing.T) {
	if got := PayoutForMilestone(100, 30); got != 30 {
		t.Fatalf("30%% milestone paid %d", got)
	}
	if got := PayoutForCompletion(100, 60); got != 40 {
		t.Fatalf("completion remainder = %d, want 40", got)
	}
	if got := PayoutForCompletion(100, 0); got != 100 {
		t.Fatalf("completion with no milestones = %d, want 100", got)
	}
}
