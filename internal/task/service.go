// Package task implements owner-driven operations on recurring tasks:
// creation with a reward snapshot, and completion of the current
// occurrence.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lucidreline/leveling/internal/model"
	"github.com/Lucidreline/leveling/internal/recurrence"
	"github.com/Lucidreline/leveling/internal/reward"
	"github.com/Lucidreline/leveling/internal/store"
	"github.com/Lucidreline/leveling/internal/telemetry"
	"github.com/Lucidreline/leveling/internal/xp"
)

type Service struct {
	store   store.Store
	rewards *reward.Calculator
	xp      *xp.Service
	log     *zap.Logger
	events  telemetry.Repository
}

func NewService(st store.Store, rewards *reward.Calculator, awarder *xp.Service, log *zap.Logger, events telemetry.Repository) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, rewards: rewards, xp: awarder, log: log, events: events}
}

// CreateInput carries the owner-supplied fields for a new task.
type CreateInput struct {
	Name        string
	Description string
	Difficulty  int
	Rule        string
	Timezone    string
	Bonus       bool
	EndDate     *time.Time
}

// Create snapshots the reward triple, anchors the recurrence series at
// now, and seeds nextDueAt with the first occurrence at or after now.
// A rule the resolver cannot evaluate falls back to now, matching how
// the sweep treats unresolvable rules.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput, now time.Time) (model.RecurringTask, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.RecurringTask{}, fmt.Errorf("task name is required")
	}
	if strings.TrimSpace(in.Rule) == "" {
		in.Rule = "FREQ=DAILY"
	}
	if strings.TrimSpace(in.Timezone) == "" {
		in.Timezone = "UTC"
	}

	rw := s.rewards.Compute(reward.KindTask, in.Difficulty, in.Bonus)

	anchor := now
	next, ok := recurrence.NextOccurrence(in.Rule, now, &anchor)
	if !ok {
		next = now
	}

	t := model.RecurringTask{
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		Difficulty:      clampDifficulty(in.Difficulty),
		InitialReward:   rw.Initial,
		BonusAmount:     rw.Bonus,
		FinalReward:     rw.Final,
		BonusMultiplier: rw.Multiplier,
		Frequency: model.Recurrence{
			Rule:     in.Rule,
			Timezone: in.Timezone,
			Anchor:   &anchor,
		},
		DatesCompleted: []time.Time{},
		Streak:         0,
		NextDueAt:      next,
		EndDate:        in.EndDate,
		CreatedAt:      s.store.ServerTimestamp(),
		UpdatedAt:      s.store.ServerTimestamp(),
	}

	doc, err := s.store.Create(ctx, model.TasksCollection(userID), model.TaskFields(t))
	if err != nil {
		return model.RecurringTask{}, fmt.Errorf("create task for %s: %w", userID, err)
	}
	t.ID = doc.ID

	telemetry.Record(s.events, telemetry.EventTaskCreated, telemetry.EventMetadata{
		"user": userID,
		"task": t.ID,
	})
	return t, nil
}

// CompleteOccurrence records an owner completion at now. If any prior
// completion already falls on now's local day the call is a no-op and
// the second return is false.
//
// Streak rule: completing on the due day itself extends the streak;
// completing on any other day restarts it at 1. nextDueAt advances to
// the occurrence after the current due instant (due + 1 minute nudge),
// or stays put when the rule cannot be resolved. The completion
// finally pays the task's finalReward to the owner.
func (s *Service) CompleteOccurrence(ctx context.Context, userID, taskID string, now time.Time) (model.RecurringTask, bool, error) {
	col := model.TasksCollection(userID)
	doc, err := s.store.Get(ctx, col, taskID)
	if err != nil {
		return model.RecurringTask{}, false, fmt.Errorf("load task %s: %w", taskID, err)
	}
	t := model.TaskFromFields(doc.ID, doc.Fields)
	tz := t.Frequency.Timezone

	for _, done := range t.DatesCompleted {
		if recurrence.SameLocalDay(done, now, tz) {
			return t, false, nil
		}
	}

	due := t.NextDueAt
	if due.IsZero() {
		due = now
	}
	next, ok := recurrence.NextOccurrence(t.Frequency.Rule, due.Add(time.Minute), t.Frequency.Anchor)
	if !ok {
		next = due
	}

	streak := 1
	if recurrence.SameLocalDay(now, due, tz) {
		streak = t.Streak + 1
	}

	t.DatesCompleted = append(t.DatesCompleted, now)
	t.NextDueAt = next
	t.Streak = streak
	t.UpdatedAt = s.store.ServerTimestamp()

	err = s.store.Update(ctx, col, taskID, map[string]any{
		"dates_completed": timesToAny(t.DatesCompleted),
		"nextDueAt":       next,
		"streak":          streak,
		"updatedAt":       t.UpdatedAt,
	})
	if err != nil {
		return model.RecurringTask{}, false, fmt.Errorf("complete task %s: %w", taskID, err)
	}

	if _, err := s.xp.AwardUser(ctx, userID, float64(t.FinalReward)); err != nil {
		return t, true, err
	}

	s.log.Info("task completed",
		zap.String("user", userID),
		zap.String("task", taskID),
		zap.Int("streak", streak),
		zap.Time("next_due", next))
	telemetry.Record(s.events, telemetry.EventTaskCompleted, telemetry.EventMetadata{
		"user":   userID,
		"task":   taskID,
		"kind":   "task",
		"streak": streak,
	})
	return t, true, nil
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 100 {
		return 100
	}
	return d
}

func timesToAny(ts []time.Time) []any {
	out := make([]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, t)
	}
	return out
}
