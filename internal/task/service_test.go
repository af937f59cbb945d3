package task

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/Lucidreline/leveling/internal/model"
	"github.com/Lucidreline/leveling/internal/progression"
	"github.com/Lucidreline/leveling/internal/reward"
	"github.com/Lucidreline/leveling/internal/store"
	"github.com/Lucidreline/leveling/internal/xp"
)

func newTestService(st *store.MemoryStore) *Service {
	awarder := xp.NewService(st, progression.Default(), nil, nil)
	return NewService(st, reward.New(rand.New(rand.NewSource(7))), awarder, nil, nil)
}

func nyZone(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func seedUser(st *store.MemoryStore) {
	st.Seed("users", "u1", map[string]any{"level": 1, "xp": 0})
}

func seedTask(st *store.MemoryStore, t model.RecurringTask) {
	st.Seed(model.TasksCollection("u1"), t.ID, model.TaskFields(t))
}

func TestCreate_SnapshotsRewardAndSeedsDue(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedUser(st)
	svc := newTestService(st)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	created, err := svc.Create(ctx, "u1", CreateInput{
		Name:       "water plants",
		Difficulty: 40,
		Rule:       "FREQ=DAILY",
		Timezone:   "America/New_York",
	}, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if created.FinalReward != 20 {
		t.Fatalf("task reward for difficulty 40 = %d, want 20", created.FinalReward)
	}
	if created.Streak != 0 {
		t.Fatalf("new task streak = %d", created.Streak)
	}
	if created.NextDueAt.Before(now) {
		t.Fatalf("first due %v is before creation %v", created.NextDueAt, now)
	}
	if created.Frequency.Anchor == nil || !created.Frequency.Anchor.Equal(now) {
		t.Fatalf("anchor not seeded at creation time: %+v", created.Frequency.Anchor)
	}

	doc, err := st.Get(ctx, model.TasksCollection("u1"), created.ID)
	if err != nil {
		t.Fatalf("persisted task missing: %v", err)
	}
	if got := model.TaskFromFields(doc.ID, doc.Fields); got.Name != "water plants" {
		t.Fatalf("persisted name = %q", got.Name)
	}
}

func TestCreate_RequiresName(t *testing.T) {
	svc := newTestService(store.NewMemoryStore())
	if _, err := svc.Create(context.Background(), "u1", CreateInput{Name: "  "}, time.Now()); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestCompleteOccurrence_OnDueDayExtendsStreak(t *testing.T) {
	ctx := context.Background()
	ny := nyZone(t)
	st := store.NewMemoryStore()
	seedUser(st)
	svc := newTestService(st)

	due := time.Date(2026, 3, 2, 9, 0, 0, 0, ny)
	anchor := due
	seedTask(st, model.RecurringTask{
		ID:          "t1",
		Name:        "journal",
		FinalReward: 15,
		Frequency:   model.Recurrence{Rule: "FREQ=DAILY", Timezone: "America/New_York", Anchor: &anchor},
		Streak:      4,
		NextDueAt:   due,
	})

	now := due.Add(2 * time.Hour) // same NY day
	updated, completed, err := svc.CompleteOccurrence(ctx, "u1", "t1", now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !completed {
		t.Fatalf("expected completion to count")
	}
	if updated.Streak != 5 {
		t.Fatalf("streak = %d, want 5", updated.Streak)
	}
	wantNext := time.Date(2026, 3, 3, 9, 0, 0, 0, ny)
	if !updated.NextDueAt.Equal(wantNext) {
		t.Fatalf("nextDueAt = %v, want %v", updated.NextDueAt, wantNext)
	}
	if len(updated.DatesCompleted) != 1 || !updated.DatesCompleted[0].Equal(now) {
		t.Fatalf("completion not recorded: %+v", updated.DatesCompleted)
	}

	doc, err := st.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("user read: %v", err)
	}
	if got := model.SubjectFromFields(doc.ID, doc.Fields).XP; got != 15 {
		t.Fatalf("user xp = %d, want 15", got)
	}
}

func TestCompleteOccurrence_OffDueDayRestartsStreak(t *testing.T) {
	ctx := context.Background()
	ny := nyZone(t)
	st := store.NewMemoryStore()
	seedUser(st)
	svc := newTestService(st)

	due := time.Date(2026, 3, 2, 9, 0, 0, 0, ny)
	anchor := due
	seedTask(st, model.RecurringTask{
		ID:          "t1",
		Name:        "journal",
		FinalReward: 15,
		Frequency:   model.Recurrence{Rule: "FREQ=DAILY", Timezone: "America/New_York", Anchor: &anchor},
		Streak:      4,
		NextDueAt:   due,
	})

	// completing a day late still advances, but the streak restarts
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, ny)
	updated, completed, err := svc.CompleteOccurrence(ctx, "u1", "t1", now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !completed {
		t.Fatalf("expected completion to count")
	}
	if updated.Streak != 1 {
		t.Fatalf("streak = %d, want 1", updated.Streak)
	}
}

func TestCompleteOccurrence_SameDayTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	ny := nyZone(t)
	st := store.NewMemoryStore()
	seedUser(st)
	svc := newTestService(st)

	due := time.Date(2026, 3, 2, 9, 0, 0, 0, ny)
	anchor := due
	seedTask(st, model.RecurringTask{
		ID:          "t1",
		Name:        "journal",
		FinalReward: 15,
		Frequency:   model.Recurrence{Rule: "FREQ=DAILY", Timezone: "America/New_York", Anchor: &anchor},
		NextDueAt:   due,
	})

	now := due.Add(time.Hour)
	if _, completed, err := svc.CompleteOccurrence(ctx, "u1", "t1", now); err != nil || !completed {
		t.Fatalf("first completion: completed=%v err=%v", completed, err)
	}
	if _, completed, err := svc.CompleteOccurrence(ctx, "u1", "t1", now.Add(time.Hour)); err != nil || completed {
		t.Fatalf("second same-day completion should be a no-op, completed=%v err=%v", completed, err)
	}

	doc, err := st.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("user read: %v", err)
	}
	if got := model.SubjectFromFields(doc.ID, doc.Fields).XP; got != 15 {
		t.Fatalf("xp awarded twice for one day: %d", got)
	}
}

func TestCompleteOccurrence_MalformedRuleKeepsDue(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedUser(st)
	svc := newTestService(st)

	due := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	seedTask(st, model.RecurringTask{
		ID:          "t1",
		Name:        "journal",
		FinalReward: 5,
		Frequency:   model.Recurrence{Rule: "garbage", Timezone: "UTC"},
		NextDueAt:   due,
	})

	updated, completed, err := svc.CompleteOccurrence(ctx, "u1", "t1", due.Add(time.Hour))
	if err != nil || !completed {
		t.Fatalf("completed=%v err=%v", completed, err)
	}
	if !updated.NextDueAt.Equal(due) {
		t.Fatalf("unresolvable rule must leave due unchanged, got %v", updated.NextDueAt)
	}
}
