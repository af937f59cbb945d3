// Package sweep reconciles overdue recurring tasks. On a fixed
// interval it scans every owner's tasks, advances anything past due
// that was not completed on its due day, resets the streak, and
// stamps the miss. Every mutation is idempotent, so overlapping or
// duplicate ticks converge instead of double-advancing.
package sweep

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Lucidreline/leveling/internal/model"
	"github.com/Lucidreline/leveling/internal/recurrence"
	"github.com/Lucidreline/leveling/internal/store"
	"github.com/Lucidreline/leveling/internal/telemetry"
)

const (
	defaultInterval = 10 * time.Minute
	defaultWorkers  = 4
	defaultPageSize = 100
	defaultTimeout  = 30 * time.Second

	// Nudge past the just-passed due instant so the resolver returns
	// the occurrence after it instead of the same one. A heuristic the
	// schedule granularity comfortably exceeds; sub-minute rules would
	// need a finer one.
	advanceNudge = time.Minute
)

type Options struct {
	Store          store.Store
	Logger         *zap.Logger
	Clock          Clock
	Events         telemetry.Repository
	Interval       time.Duration
	Workers        int
	PageSize       int
	RequestTimeout time.Duration
	// Timezone is the operator's zone, used for tick log timestamps.
	// Task due-day math always uses each task's own zone.
	Timezone string
}

type Sweeper struct {
	store   store.Store
	log     *zap.Logger
	clock   Clock
	events  telemetry.Repository
	every   time.Duration
	workers int
	page    int
	timeout time.Duration
	zone    *time.Location
}

func New(opts Options) *Sweeper {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultTimeout
	}
	zone := time.UTC
	if opts.Timezone != "" {
		if loc, err := time.LoadLocation(opts.Timezone); err == nil {
			zone = loc
		}
	}
	return &Sweeper{
		store:   opts.Store,
		log:     opts.Logger,
		clock:   opts.Clock,
		events:  opts.Events,
		every:   opts.Interval,
		workers: opts.Workers,
		page:    opts.PageSize,
		timeout: opts.RequestTimeout,
		zone:    zone,
	}
}

// TickStats summarizes one sweep pass.
type TickStats struct {
	Owners   int
	Due      int
	Advanced int
	Skipped  int
	Failed   int
}

// Run ticks immediately, then on every interval until ctx is done.
// A tick that outlives the interval simply delays the next one; the
// per-task mutations stay safe either way because they are idempotent.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one full reconciliation pass: a paginated scan over
// the owner index, fanning each page's owners out to a bounded worker
// pool. A failure on one owner or task never aborts the rest of the
// pass.
func (s *Sweeper) Tick(ctx context.Context) TickStats {
	now := s.clock.Now()
	s.log.Info("sweep tick start", zap.Time("now", now.In(s.zone)))

	var owners, due, advanced, skipped, failed atomic.Int64

	cursor := ""
	for {
		page, err := s.store.Query(ctx, model.UsersCollection(), store.Query{
			StartAfter: cursor,
			Limit:      s.page,
		})
		if err != nil {
			s.log.Error("owner scan failed", zap.Error(err))
			failed.Add(1)
			break
		}
		if len(page) == 0 {
			break
		}

		g := new(errgroup.Group)
		g.SetLimit(s.workers)
		for _, ownerDoc := range page {
			ownerID := ownerDoc.ID
			owners.Add(1)
			g.Go(func() error {
				d, a, sk, f := s.sweepOwner(ctx, now, ownerID)
				due.Add(int64(d))
				advanced.Add(int64(a))
				skipped.Add(int64(sk))
				failed.Add(int64(f))
				return nil
			})
		}
		_ = g.Wait()

		cursor = page[len(page)-1].ID
		if len(page) < s.page {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	stats := TickStats{
		Owners:   int(owners.Load()),
		Due:      int(due.Load()),
		Advanced: int(advanced.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	s.log.Info("sweep tick complete",
		zap.Int("owners", stats.Owners),
		zap.Int("due", stats.Due),
		zap.Int("advanced", stats.Advanced),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	telemetry.Record(s.events, telemetry.EventSweepTick, telemetry.EventMetadata{
		"owners":   stats.Owners,
		"due":      stats.Due,
		"advanced": stats.Advanced,
		"skipped":  stats.Skipped,
		"failed":   stats.Failed,
	})
	return stats
}

func (s *Sweeper) sweepOwner(ctx context.Context, now time.Time, ownerID string) (due, advanced, skipped, failed int) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	docs, err := s.store.Query(opCtx, model.TasksCollection(ownerID), store.Query{
		Filters: []store.Filter{{Field: "nextDueAt", Op: store.OpLte, Value: now}},
	})
	cancel()
	if err != nil {
		s.log.Warn("due-task query failed", zap.String("owner", ownerID), zap.Error(err))
		return 0, 0, 0, 1
	}

	s.log.Info("owner due tasks", zap.String("owner", ownerID), zap.Int("count", len(docs)))

	for _, doc := range docs {
		due++
		a, sk, f := s.processTask(ctx, now, ownerID, doc)
		advanced += a
		skipped += sk
		failed += f
	}
	return due, advanced, skipped, failed
}

// processTask runs the per-task state machine for one tick:
// skip ended tasks, skip occurrences the owner already completed on
// the due day, otherwise advance and reset the streak.
func (s *Sweeper) processTask(ctx context.Context, now time.Time, ownerID string, doc store.Doc) (advanced, skipped, failed int) {
	t := model.TaskFromFields(doc.ID, doc.Fields)
	tz := t.Frequency.Timezone

	if t.Ended(now) {
		s.log.Info("task skipped",
			zap.String("owner", ownerID),
			zap.String("task", t.ID),
			zap.String("reason", "ended"))
		return 0, 1, 0
	}

	for _, done := range t.DatesCompleted {
		if recurrence.SameLocalDay(done, t.NextDueAt, tz) {
			// The owner completed this occurrence and the client
			// already advanced it; advancing again would skip a day.
			s.log.Info("task skipped",
				zap.String("owner", ownerID),
				zap.String("task", t.ID),
				zap.String("reason", "completed on due day"))
			return 0, 1, 0
		}
	}

	if now.Before(t.NextDueAt) {
		return 0, 1, 0
	}

	next, ok := recurrence.NextOccurrence(t.Frequency.Rule, t.NextDueAt.Add(advanceNudge), t.Frequency.Anchor)
	if !ok {
		// Unresolvable rule: leave the due instant as it is rather
		// than nulling it out.
		next = t.NextDueAt
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.store.Update(opCtx, model.TasksCollection(ownerID), t.ID, map[string]any{
		"streak":       0,
		"nextDueAt":    next,
		"lastMissedAt": now,
		"updatedAt":    s.store.ServerTimestamp(),
	})
	cancel()
	if err != nil {
		s.log.Warn("task advance failed",
			zap.String("owner", ownerID),
			zap.String("task", t.ID),
			zap.Error(err))
		return 0, 0, 1
	}

	s.log.Info("task advanced",
		zap.String("owner", ownerID),
		zap.String("task", t.ID),
		zap.Time("was_due", t.NextDueAt),
		zap.Time("next_due", next))
	telemetry.Record(s.events, telemetry.EventTaskMissed, telemetry.EventMetadata{
		"owner": ownerID,
		"task":  t.ID,
	})
	return 1, 0, 0
}
