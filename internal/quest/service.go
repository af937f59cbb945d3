// Package quest handles quest and side-quest completion events and
// milestone set mutations, routing payouts through the XP service.
package quest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lucidreline/leveling/internal/milestone"
	"github.com/Lucidreline/leveling/internal/model"
	"github.com/Lucidreline/leveling/internal/store"
	"github.com/Lucidreline/leveling/internal/telemetry"
	"github.com/Lucidreline/leveling/internal/xp"
)

var (
	ErrMilestoneIndex    = errors.New("milestone index out of range")
	ErrMilestoneReverted = errors.New("completed milestones cannot be reverted")
)

type Service struct {
	store  store.Store
	xp     XPAwarder
	log    *zap.Logger
	events telemetry.Repository
}

// XPAwarder is the slice of the XP service this package needs.
type XPAwarder interface {
	AwardUser(ctx context.Context, userID string, delta float64) (xp.Result, error)
	AwardAttributes(ctx context.Context, userID string, attributeIDs []string, delta float64) error
}

func NewService(st store.Store, awarder XPAwarder, log *zap.Logger, events telemetry.Repository) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, xp: awarder, log: log, events: events}
}

// SetMilestones replaces a quest's milestone set. The set is validated
// before anything is persisted, and milestones that are already
// complete stay complete: completion is one-way.
func (s *Service) SetMilestones(ctx context.Context, userID, questID string, ms []model.Milestone) error {
	if _, err := milestone.Validate(ms); err != nil {
		return err
	}

	col := model.QuestsCollection(userID)
	doc, err := s.store.Get(ctx, col, questID)
	if err != nil {
		return fmt.Errorf("load quest %s: %w", questID, err)
	}
	cur := model.QuestFromFields(doc.ID, doc.Fields)

	// work on a copy; the caller's slice stays untouched either way
	next := make([]model.Milestone, len(ms))
	copy(next, ms)

	for i := range next {
		if i >= len(cur.Milestones) || !cur.Milestones[i].IsComplete {
			continue
		}
		if !next[i].IsComplete {
			return ErrMilestoneReverted
		}
		// keep the original completion stamp
		next[i].CompletedAt = cur.Milestones[i].CompletedAt
	}

	return s.store.Update(ctx, col, questID, map[string]any{
		"milestones": model.MilestonesFields(next),
		"updatedAt":  s.store.ServerTimestamp(),
	})
}

// CompleteMilestone marks one milestone complete and pays its share of
// the quest's reward. Completing an already-complete milestone is a
// no-op returning zero; the payout happens exactly once.
func (s *Service) CompleteMilestone(ctx context.Context, userID, questID string, index int) (int, error) {
	col := model.QuestsCollection(userID)
	doc, err := s.store.Get(ctx, col, questID)
	if err != nil {
		return 0, fmt.Errorf("load quest %s: %w", questID, err)
	}
	q := model.QuestFromFields(doc.ID, doc.Fields)

	if index < 0 || index >= len(q.Milestones) {
		return 0, ErrMilestoneIndex
	}
	if q.Milestones[index].IsComplete {
		return 0, nil
	}

	now := s.store.ServerTimestamp()
	q.Milestones[index].IsComplete = true
	q.Milestones[index].CompletedAt = &now

	err = s.store.Update(ctx, col, questID, map[string]any{
		"milestones": model.MilestonesFields(q.Milestones),
		"updatedAt":  now,
	})
	if err != nil {
		return 0, fmt.Errorf("persist milestone %d on quest %s: %w", index, questID, err)
	}

	payout := milestone.PayoutForMilestone(q.FinalReward, q.Milestones[index].RewardPercentage)
	if _, err := s.xp.AwardUser(ctx, userID, float64(payout)); err != nil {
		return payout, err
	}

	s.log.Info("milestone completed",
		zap.String("user", userID),
		zap.String("quest", questID),
		zap.Int("index", index),
		zap.Int("payout", payout))
	telemetry.Record(s.events, telemetry.EventMilestoneCompleted, telemetry.EventMetadata{
		"user":   userID,
		"quest":  questID,
		"index":  index,
		"payout": payout,
	})
	return payout, nil
}

// ToggleQuestComplete flips the quest's completion state. Going
// incomplete→complete pays the remainder the milestones did not
// already cover; going back reverses it with the negated amount.
// Returns the signed XP delta that was awarded.
func (s *Service) ToggleQuestComplete(ctx context.Context, userID, questID string) (int, error) {
	col := model.QuestsCollection(userID)
	doc, err := s.store.Get(ctx, col, questID)
	if err != nil {
		return 0, fmt.Errorf("load quest %s: %w", questID, err)
	}
	q := model.QuestFromFields(doc.ID, doc.Fields)

	toComplete := !q.IsComplete
	now := s.store.ServerTimestamp()
	fields := map[string]any{
		"is_complete": toComplete,
		"updatedAt":   now,
	}
	if toComplete {
		fields["closedAt"] = now
	} else {
		fields["closedAt"] = nil
	}
	if err := s.store.Update(ctx, col, questID, fields); err != nil {
		return 0, fmt.Errorf("toggle quest %s: %w", questID, err)
	}

	payout := milestone.PayoutForCompletion(q.FinalReward, q.MilestoneTotal())
	delta := payout
	if !toComplete {
		delta = -payout
	}
	if _, err := s.xp.AwardUser(ctx, userID, float64(delta)); err != nil {
		return delta, err
	}

	telemetry.Record(s.events, telemetry.EventQuestToggled, telemetry.EventMetadata{
		"user":     userID,
		"quest":    questID,
		"complete": toComplete,
		"delta":    delta,
	})
	return delta, nil
}

// ToggleSideQuestComplete flips a side quest and awards ±finalReward
// to the user and to every attached attribute.
func (s *Service) ToggleSideQuestComplete(ctx context.Context, userID, sideQuestID string) (int, error) {
	col := model.SideQuestsCollection(userID)
	doc, err := s.store.Get(ctx, col, sideQuestID)
	if err != nil {
		return 0, fmt.Errorf("load side quest %s: %w", sideQuestID, err)
	}
	sq := model.SideQuestFromFields(doc.ID, doc.Fields)

	toComplete := !sq.IsComplete
	now := s.store.ServerTimestamp()
	fields := map[string]any{
		"is_complete": toComplete,
		"updatedAt":   now,
	}
	if toComplete {
		fields["closedAt"] = now
	} else {
		fields["closedAt"] = nil
	}
	if err := s.store.Update(ctx, col, sideQuestID, fields); err != nil {
		return 0, fmt.Errorf("toggle side quest %s: %w", sideQuestID, err)
	}

	delta := sq.FinalReward
	if !toComplete {
		delta = -sq.FinalReward
	}
	if _, err := s.xp.AwardUser(ctx, userID, float64(delta)); err != nil {
		return delta, err
	}
	if err := s.xp.AwardAttributes(ctx, userID, sq.AttributeIDs, float64(delta)); err != nil {
		return delta, err
	}

	telemetry.Record(s.events, telemetry.EventSideQuestToggled, telemetry.EventMetadata{
		"user":       userID,
		"sidequest":  sideQuestID,
		"complete":   toComplete,
		"delta":      delta,
		"attributes": len(sq.AttributeIDs),
	})
	return delta, nil
}
