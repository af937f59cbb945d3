package model

import (
	"encoding/json"
	"time"
)

// Codecs between the loose document shapes the store holds and the
// strict structs above. The hosted datastore carries legacy documents
// with missing fields and mixed number encodings; all of that
// tolerance lives here so the services never see a partial entity.

// TaskFromFields decodes a recurring-task document.
func TaskFromFields(id string, f map[string]any) RecurringTask {
	t := RecurringTask{
		ID:              id,
		Name:            asString(f["name"]),
		Description:     asString(f["description"]),
		Difficulty:      clampInt(asInt(f["difficulty"], 1), 1, 100),
		InitialReward:   asInt(f["initial_reward"], 0),
		BonusAmount:     asInt(f["bonus_amount"], 0),
		FinalReward:     asInt(f["final_reward"], 0),
		BonusMultiplier: asFloat(f["bonus_multiplier"], 1),
		Streak:          maxInt(0, asInt(f["streak"], 0)),
		NextDueAt:       asTime(f["nextDueAt"]),
		EndDate:         asTimePtr(f["end_date"]),
		LastMissedAt:    asTimePtr(f["lastMissedAt"]),
		CreatedAt:       asTime(f["createdAt"]),
		UpdatedAt:       asTime(f["updatedAt"]),
	}
	if freq, ok := f["frequency"].(map[string]any); ok {
		t.Frequency = Recurrence{
			Rule:     asString(freq["rrule"]),
			Timezone: asString(freq["timezone"]),
			Anchor:   asTimePtr(freq["anchor"]),
		}
	}
	if t.Frequency.Rule == "" {
		t.Frequency.Rule = "FREQ=DAILY"
	}
	if t.Frequency.Timezone == "" {
		t.Frequency.Timezone = "UTC"
	}
	for _, v := range asSlice(f["dates_completed"]) {
		if ts := asTime(v); !ts.IsZero() {
			t.DatesCompleted = append(t.DatesCompleted, ts)
		}
	}
	return t
}

// TaskFields encodes the full task document for creation.
func TaskFields(t RecurringTask) map[string]any {
	f := map[string]any{
		"name":             t.Name,
		"description":      t.Description,
		"difficulty":       t.Difficulty,
		"initial_reward":   t.InitialReward,
		"bonus_amount":     t.BonusAmount,
		"final_reward":     t.FinalReward,
		"bonus_multiplier": t.BonusMultiplier,
		"frequency":        RecurrenceFields(t.Frequency),
		"dates_completed":  timesToAny(t.DatesCompleted),
		"streak":           t.Streak,
		"nextDueAt":        t.NextDueAt,
		"createdAt":        t.CreatedAt,
		"updatedAt":        t.UpdatedAt,
	}
	if t.EndDate != nil {
		f["end_date"] = *t.EndDate
	}
	if t.LastMissedAt != nil {
		f["lastMissedAt"] = *t.LastMissedAt
	}
	return f
}

func RecurrenceFields(r Recurrence) map[string]any {
	f := map[string]any{
		"rrule":    r.Rule,
		"timezone": r.Timezone,
	}
	if r.Anchor != nil {
		f["anchor"] = *r.Anchor
	}
	return f
}

// QuestFromFields decodes a quest document. The reward amount lives
// under "reward" on quests; older documents used "final_reward".
func QuestFromFields(id string, f map[string]any) Quest {
	q := Quest{
		ID:          id,
		Description: asString(f["description"]),
		Difficulty:  asInt(f["difficulty"], 1),
		FinalReward: asInt(f["reward"], asInt(f["final_reward"], 0)),
		IsComplete:  asBool(f["is_complete"]),
		OpenedAt:    asTimePtr(f["openedAt"]),
		ClosedAt:    asTimePtr(f["closedAt"]),
		CreatedAt:   asTime(f["createdAt"]),
		UpdatedAt:   asTime(f["updatedAt"]),
	}
	for _, v := range asSlice(f["milestones"]) {
		if m, ok := v.(map[string]any); ok {
			q.Milestones = append(q.Milestones, MilestoneFromFields(m))
		}
	}
	return q
}

func MilestoneFromFields(f map[string]any) Milestone {
	return Milestone{
		Name:             asString(f["milestone_name"]),
		RewardPercentage: asFloat(f["reward_percentage"], 0),
		IsComplete:       asBool(f["is_complete"]),
		CompletedAt:      asTimePtr(f["completedAt"]),
	}
}

func MilestoneFields(m Milestone) map[string]any {
	f := map[string]any{
		"milestone_name":    m.Name,
		"reward_percentage": m.RewardPercentage,
		"is_complete":       m.IsComplete,
	}
	if m.CompletedAt != nil {
		f["completedAt"] = *m.CompletedAt
	}
	return f
}

func MilestonesFields(ms []Milestone) []any {
	out := make([]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, MilestoneFields(m))
	}
	return out
}

func SideQuestFromFields(id string, f map[string]any) SideQuest {
	sq := SideQuest{
		ID:              id,
		Name:            asString(f["name"]),
		Description:     asString(f["description"]),
		Difficulty:      asInt(f["difficulty"], 1),
		InitialReward:   asInt(f["initial_reward"], 0),
		BonusAmount:     asInt(f["bonus_amount"], 0),
		FinalReward:     asInt(f["final_reward"], 0),
		BonusMultiplier: asFloat(f["bonus_multiplier"], 1),
		IsComplete:      asBool(f["is_complete"]),
		OpenedAt:        asTimePtr(f["openedAt"]),
		ClosedAt:        asTimePtr(f["closedAt"]),
		CreatedAt:       asTime(f["createdAt"]),
		UpdatedAt:       asTime(f["updatedAt"]),
	}
	for _, v := range asSlice(f["attributeIds"]) {
		if s := asString(v); s != "" {
			sq.AttributeIDs = append(sq.AttributeIDs, s)
		}
	}
	return sq
}

// SubjectFromFields decodes the progression state of a user or
// attribute document, clamping into the settled domain.
func SubjectFromFields(id string, f map[string]any) Subject {
	return Subject{
		ID:    id,
		Name:  asString(f["name"]),
		Level: maxInt(1, asInt(f["level"], 1)),
		XP:    maxInt(0, asInt(f["xp"], 0)),
	}
}

// loose-value helpers

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	}
	return def
}

func asFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func timesToAny(ts []time.Time) []any {
	out := make([]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, t)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
