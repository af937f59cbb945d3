package telemetry

import (
	"encoding/json"
	"time"
)

type Stats struct {
	Period              string            `json:"period"`
	EventCounts         map[EventType]int `json:"event_counts"`
	SweepTicks          int               `json:"sweep_ticks"`
	TasksMissed         int               `json:"tasks_missed"`
	TaskCompletions     int               `json:"task_completions"`
	MissesPerTick       float64           `json:"misses_per_tick"`
	XPAwardedTotal      int               `json:"xp_awarded_total"`
	LevelUps            int               `json:"level_ups"`
	MilestonePayouts    int               `json:"milestone_payouts"`
	MilestonePayoutsXP  int               `json:"milestone_payouts_xp"`
	CompletionsByReason map[string]int    `json:"completions_by_reason"`
}

// CalculateStats computes engine balance stats from events
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:              since.Format("2006-01-02"),
		EventCounts:         make(map[EventType]int),
		CompletionsByReason: make(map[string]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}

		switch event.Type {
		case EventSweepTick:
			stats.SweepTicks++
		case EventTaskMissed:
			stats.TasksMissed++
		case EventTaskCompleted:
			stats.TaskCompletions++
			if kind, ok := metadata["kind"].(string); ok {
				stats.CompletionsByReason[kind]++
			}
		case EventXPAwarded:
			if delta, ok := metadata["delta"].(float64); ok {
				stats.XPAwardedTotal += int(delta)
			}
		case EventLevelUp:
			if gained, ok := metadata["levels_gained"].(float64); ok {
				stats.LevelUps += int(gained)
			} else {
				stats.LevelUps++
			}
		case EventMilestoneCompleted:
			stats.MilestonePayouts++
			if amt, ok := metadata["payout"].(float64); ok {
				stats.MilestonePayoutsXP += int(amt)
			}
		}
	}

	if stats.SweepTicks > 0 {
		stats.MissesPerTick = float64(stats.TasksMissed) / float64(stats.SweepTicks)
	}

	return stats, nil
}
