package model

import (
	"time"
)

// Recurrence describes a repeating schedule for a task.
// Rule is an RFC 5545 RRULE expression; Timezone is an IANA zone name
// used for local-day comparisons; Anchor seeds the series start when
// the rule carries no DTSTART of its own.
type Recurrence struct {
	Rule     string     `json:"rrule"`
	Timezone string     `json:"timezone"`
	Anchor   *time.Time `json:"anchor,omitempty"`
}

// RecurringTask is a user-owned task that comes due on a schedule.
// NextDueAt is only ever written from a resolver result (or the
// creation-time anchor); the sweep and completion paths are the sole
// mutators.
type RecurringTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Difficulty  int    `json:"difficulty"`

	InitialReward   int     `json:"initial_reward"`
	BonusAmount     int     `json:"bonus_amount"`
	FinalReward     int     `json:"final_reward"`
	BonusMultiplier float64 `json:"bonus_multiplier"`

	Frequency      Recurrence  `json:"frequency"`
	DatesCompleted []time.Time `json:"dates_completed"`
	Streak         int         `json:"streak"`
	NextDueAt      time.Time   `json:"nextDueAt"`
	EndDate        *time.Time  `json:"end_date,omitempty"`
	LastMissedAt   *time.Time  `json:"lastMissedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ended reports whether the task's end date is set and has passed.
func (t RecurringTask) Ended(now time.Time) bool {
	return t.EndDate != nil && t.EndDate.Before(now)
}

// Milestone is a partial-completion checkpoint inside a quest.
// Completion is monotonic: once IsComplete is set it never reverts.
type Milestone struct {
	Name             string     `json:"milestone_name"`
	RewardPercentage float64    `json:"reward_percentage"`
	IsComplete       bool       `json:"is_complete"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// Quest is a long-running goal with an XP reward, optionally split
// across milestones.
type Quest struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Difficulty  int         `json:"difficulty"`
	FinalReward int         `json:"reward"`
	IsComplete  bool        `json:"is_complete"`
	Milestones  []Milestone `json:"milestones"`
	OpenedAt    *time.Time  `json:"openedAt,omitempty"`
	ClosedAt    *time.Time  `json:"closedAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// MilestoneTotal is the summed reward percentage across all
// milestones, complete or not.
func (q Quest) MilestoneTotal() float64 {
	total := 0.0
	for _, m := range q.Milestones {
		total += m.RewardPercentage
	}
	return total
}

// SideQuest is a one-shot goal that can additionally credit a set of
// attributes when completed.
type SideQuest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Difficulty  int    `json:"difficulty"`

	InitialReward   int     `json:"initial_reward"`
	BonusAmount     int     `json:"bonus_amount"`
	FinalReward     int     `json:"final_reward"`
	BonusMultiplier float64 `json:"bonus_multiplier"`

	IsComplete   bool       `json:"is_complete"`
	AttributeIDs []string   `json:"attributeIds,omitempty"`
	OpenedAt     *time.Time `json:"openedAt,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Subject is anything that accumulates XP and levels: a user, or one
// of a user's attributes. After any award the subject is settled, i.e.
// XP is strictly below the requirement for the next level.
type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Level int    `json:"level"`
	XP    int    `json:"xp"`
}

// Collection paths in the hierarchical document store. The layout
// mirrors the hosted datastore the external CRUD layer writes to.

func UsersCollection() string { return "users" }

func TasksCollection(userID string) string { return "users/" + userID + "/commonTasks" }

func QuestsCollection(userID string) string { return "users/" + userID + "/quests" }

func SideQuestsCollection(userID string) string { return "users/" + userID + "/sideQuests" }

func AttributesCollection(userID string) string { return "users/" + userID + "/attributes" }
