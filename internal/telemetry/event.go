package telemetry

import "time"

type EventType string

const (
	EventSweepTick          EventType = "sweep_tick"
	EventTaskCreated        EventType = "task_created"
	EventTaskCompleted      EventType = "task_completed"
	EventTaskMissed         EventType = "task_missed"
	EventXPAwarded          EventType = "xp_awarded"
	EventLevelUp            EventType = "level_up"
	EventMilestoneCompleted EventType = "milestone_completed"
	EventQuestToggled       EventType = "quest_toggled"
	EventSideQuestToggled   EventType = "sidequest_toggled"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
