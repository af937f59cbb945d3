// Package xp settles XP awards onto users and attributes: atomic
// increment first, then a best-effort level settle.
package xp

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Lucidreline/leveling/internal/model"
	"github.com/Lucidreline/leveling/internal/progression"
	"github.com/Lucidreline/leveling/internal/store"
	"github.com/Lucidreline/leveling/internal/telemetry"
)

// Result is the subject's settled state after an award.
type Result struct {
	Level        int `json:"level"`
	XP           int `json:"xp"`
	LevelsGained int `json:"levelsGained"`
}

type Service struct {
	store  store.Store
	curve  progression.Curve
	log    *zap.Logger
	events telemetry.Repository
}

func NewService(st store.Store, curve progression.Curve, log *zap.Logger, events telemetry.Repository) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, curve: curve, log: log, events: events}
}

// AwardUser adds delta XP to the user and settles any level-ups.
func (s *Service) AwardUser(ctx context.Context, userID string, delta float64) (Result, error) {
	return s.award(ctx, model.UsersCollection(), userID, delta)
}

// AwardAttributes credits delta XP to each of the user's attributes,
// one increment per attribute. A failure on one attribute does not
// stop the rest; the first error is reported after all are attempted.
func (s *Service) AwardAttributes(ctx context.Context, userID string, attributeIDs []string, delta float64) error {
	if len(attributeIDs) == 0 || isNoopDelta(delta) {
		return nil
	}
	col := model.AttributesCollection(userID)
	var firstErr error
	for _, attrID := range attributeIDs {
		if _, err := s.award(ctx, col, attrID, delta); err != nil {
			s.log.Warn("attribute award failed",
				zap.String("user", userID),
				zap.String("attribute", attrID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// award runs the increment-then-settle sequence. The store only
// guarantees an atomic increment; the settle step re-reads and
// conditionally writes, so two racing awards can momentarily leave a
// pending level-up. That is accepted: total XP is never lost and the
// next award settles it.
func (s *Service) award(ctx context.Context, collection, id string, delta float64) (Result, error) {
	if isNoopDelta(delta) {
		return Result{Level: 1}, nil
	}

	rounded := math.Round(delta)
	if err := s.store.AtomicIncrement(ctx, collection, id, "xp", rounded); err != nil {
		return Result{}, fmt.Errorf("increment xp for %s/%s: %w", collection, id, err)
	}

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return Result{}, fmt.Errorf("reread %s/%s: %w", collection, id, err)
	}
	subject := model.SubjectFromFields(doc.ID, doc.Fields)

	settled := s.curve.ApplyLevelUps(subject.Level, subject.XP)
	if settled.Level != subject.Level || settled.XP != subject.XP {
		err := s.store.Update(ctx, collection, id, map[string]any{
			"level":     settled.Level,
			"xp":        settled.XP,
			"updatedAt": s.store.ServerTimestamp(),
		})
		if err != nil {
			return Result{}, fmt.Errorf("settle %s/%s: %w", collection, id, err)
		}
	}

	telemetry.Record(s.events, telemetry.EventXPAwarded, telemetry.EventMetadata{
		"collection": collection,
		"subject":    id,
		"delta":      rounded,
	})
	if settled.LevelsGained > 0 {
		s.log.Info("level up",
			zap.String("collection", collection),
			zap.String("subject", id),
			zap.Int("level", settled.Level),
			zap.Int("levels_gained", settled.LevelsGained))
		telemetry.Record(s.events, telemetry.EventLevelUp, telemetry.EventMetadata{
			"collection":    collection,
			"subject":       id,
			"level":         settled.Level,
			"levels_gained": settled.LevelsGained,
		})
	}

	return Result{Level: settled.Level, XP: settled.XP, LevelsGained: settled.LevelsGained}, nil
}

// isNoopDelta filters zero and non-finite deltas; both are silent
// no-ops with no store access.
func isNoopDelta(delta float64) bool {
	return delta == 0 || math.IsNaN(delta) || math.IsInf(delta, 0)
}
