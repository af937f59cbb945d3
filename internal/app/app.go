// Package app wires the engine together: store, services, sweeper,
// and the daemon's small operational HTTP surface.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lucidreline/leveling/internal/config"
	"github.com/Lucidreline/leveling/internal/httpmw"
	"github.com/Lucidreline/leveling/internal/model"
	"github.com/Lucidreline/leveling/internal/ops"
	"github.com/Lucidreline/leveling/internal/progression"
	"github.com/Lucidreline/leveling/internal/quest"
	"github.com/Lucidreline/leveling/internal/reward"
	"github.com/Lucidreline/leveling/internal/store"
	"github.com/Lucidreline/leveling/internal/sweep"
	"github.com/Lucidreline/leveling/internal/task"
	"github.com/Lucidreline/leveling/internal/telemetry"
	"github.com/Lucidreline/leveling/internal/xp"
)

// snapshotRetention is how many snapshot archives the endpoint keeps.
const snapshotRetention = 10

type Options struct {
	Config *config.Config
	Logger *zap.Logger
	// Store overrides the file store; tests use this.
	Store store.Store
}

type App struct {
	cfg    *config.Config
	log    *zap.Logger
	store  store.Store
	events *telemetry.MemoryRepository

	XP      *xp.Service
	Quests  *quest.Service
	Tasks   *task.Service
	Sweeper *sweep.Sweeper
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	st := opts.Store
	if st == nil {
		fs, err := store.NewFileStore(opts.Config.DataDir)
		if err != nil {
			return nil, err
		}
		st = fs
	}

	events := telemetry.NewMemoryRepository()

	curve := progression.Curve{
		Base:   opts.Config.Progression.BaseXP,
		Growth: opts.Config.Progression.Growth,
	}

	var rng *rand.Rand
	if opts.Config.SeededRNG.Enabled {
		rng = rand.New(rand.NewSource(opts.Config.SeededRNG.Seed))
	}
	rewards := reward.New(rng)

	xpSvc := xp.NewService(st, curve, opts.Logger, events)
	questSvc := quest.NewService(st, xpSvc, opts.Logger, events)
	taskSvc := task.NewService(st, rewards, xpSvc, opts.Logger, events)

	sweeper := sweep.New(sweep.Options{
		Store:          st,
		Logger:         opts.Logger,
		Events:         events,
		Interval:       time.Duration(opts.Config.Sweep.IntervalMinutes) * time.Minute,
		Workers:        opts.Config.Sweep.Workers,
		PageSize:       opts.Config.Sweep.PageSize,
		RequestTimeout: time.Duration(opts.Config.Sweep.RequestTimeoutSeconds) * time.Second,
		Timezone:       opts.Config.Sweep.Timezone,
	})

	return &App{
		cfg:     opts.Config,
		log:     opts.Logger,
		store:   st,
		events:  events,
		XP:      xpSvc,
		Quests:  questSvc,
		Tasks:   taskSvc,
		Sweeper: sweeper,
	}, nil
}

// Handler exposes health probes and a telemetry stats readout. There
// is no user-facing API here; the CRUD surface lives elsewhere.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "leveling-sweeper",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := a.store.Query(r.Context(), model.UsersCollection(), store.Query{Limit: 1}); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "document store unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "leveling-sweeper",
		})
	})

	mux.HandleFunc("/api/telemetry/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		since := time.Now().AddDate(0, 0, -7)
		if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
			if parsed, err := time.Parse("2006-01-02", raw); err == nil {
				since = parsed
			}
		}
		events, err := a.events.GetEvents(since, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		stats, err := telemetry.CalculateStats(events, since)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc("/api/ops/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		name := ops.SnapshotName(time.Now())
		archive := filepath.Join(a.cfg.DataDir+"-snapshots", name)
		if err := ops.Snapshot(a.cfg.DataDir, archive); err != nil {
			a.log.Error("snapshot failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "snapshot failed",
			})
			return
		}
		removed, err := ops.Prune(filepath.Dir(archive), snapshotRetention)
		if err != nil {
			a.log.Warn("snapshot prune failed", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"archive": archive,
			"pruned":  len(removed),
		})
	})

	return httpmw.Chain(mux,
		httpmw.WithRequestID,
		httpmw.WithRecover(a.log),
		httpmw.WithAccessLog(a.log),
	)
}

// Run starts the sweeper and the operational HTTP listener, and shuts
// both down when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: a.Handler(),
	}

	go a.Sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
