package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"declutter/internal/dispatch"
	"declutter/internal/history"
	"declutter/internal/logging"
	"declutter/internal/mover"
	"declutter/internal/plan"
	"declutter/internal/preflight"
	"declutter/internal/scanner"
	"declutter/internal/services"
)

var (
	// ErrDeclined is returned when the confirmation callback rejects a plan
	// or an undo preview. Nothing was changed.
	ErrDeclined = errors.New("declined by user")
	// ErrLocked is returned when another run holds the run lock.
	ErrLocked = errors.New("another declutter run is in progress")
)

// Engine runs organize and undo passes for one Config.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	lockMu    sync.Mutex
	lock      *flock.Flock
	lockDepth int
}

// New validates cfg and builds an engine. Online runs require a client.
func New(cfg Config, deps Deps) (*Engine, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if deps.Cache == nil || deps.Journal == nil {
		return nil, errors.New("engine requires a response cache and an undo journal")
	}
	if !cfg.Offline && deps.Client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "new",
			"online categorization needs a service client; configure an API key or use offline mode", nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "engine"),
		now:    now,
	}
	if deps.LockPath != "" {
		e.lock = flock.New(deps.LockPath)
	}
	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg.clone()
}

// Plan scans the root, categorizes every file and returns the resulting
// plan. Nothing is moved. The response cache is persisted unless the run is
// offline.
func (e *Engine) Plan(ctx context.Context) (*plan.Plan, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, e.logger)

	if check := preflight.CheckDirectoryAccess("target directory", e.cfg.Root); !check.Passed {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "plan", check.Detail, nil)
	}

	if swept := e.deps.Cache.Sweep(); swept > 0 {
		logger.Debug("swept stale cache entries", logging.Int("removed", swept))
	}

	files, err := scanner.Scan(services.WithPhase(ctx, "scan"), e.cfg.Root, scanner.Options{
		Recursive: e.cfg.Recursive,
		Logger:    e.deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	e.emit(ctx, Event{Type: EventScanComplete, RunID: runID, Total: len(files)})
	logger.Info("scan complete",
		logging.String("root", e.cfg.Root),
		logging.Int("files", len(files)),
		logging.Bool("recursive", e.cfg.Recursive),
	)

	var client dispatch.Categorizer
	if !e.cfg.Offline {
		client = e.deps.Client
	}
	d := dispatch.New(client, e.deps.Cache, dispatch.Options{
		MaxConcurrent:  e.cfg.MaxConcurrent,
		Categories:     e.cfg.Categories,
		Offline:        e.cfg.Offline,
		DeepInspection: e.cfg.DeepInspection,
		Logger:         e.deps.Logger,
		Metrics:        e.deps.Metrics,
		Progress: func(done, total int) {
			e.emit(ctx, Event{Type: EventCategorizationProgress, RunID: runID, Done: done, Total: total})
		},
	})
	results, err := d.Run(services.WithPhase(ctx, "categorize"), files)
	if err != nil {
		return nil, err
	}

	if !e.cfg.Offline {
		if err := e.deps.Cache.Save(); err != nil {
			logging.WarnWithContext(logger, "response cache not saved", "cache_save_failed",
				logging.Path(e.deps.Cache.Path()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions in the data directory"),
				logging.String(logging.FieldImpact, "the next run will ask the service again"),
			)
		} else {
			logger.Debug("response cache saved",
				logging.Int("entries", e.deps.Cache.Len()),
				logging.Int("evicted", e.deps.Cache.Evicted()),
			)
		}
	}

	p, err := plan.Build(e.cfg.Root, files, results, plan.Options{Overwrite: e.cfg.Overwrite})
	if err != nil {
		return nil, err
	}
	p.RunID = runID
	stats := p.Stats()
	e.emit(ctx, Event{Type: EventPlanReady, RunID: runID, Total: stats.Moves, Stats: stats})
	logger.Info("plan ready",
		logging.Int("moves", stats.Moves),
		logging.Int("in_place", stats.InPlace),
		logging.Int("conflicts", stats.Conflicts),
		logging.Int("degraded", stats.Degraded),
		logging.Int64("bytes", stats.Bytes),
	)
	return p, nil
}

// Execute runs the moves of p under the run lock. In dry-run mode nothing
// is moved and the journal is untouched.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan) (mover.Summary, error) {
	if p == nil {
		return mover.Summary{DryRun: e.cfg.DryRun}, errors.New("execute: plan is required")
	}
	runID := p.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithPhase(services.WithRunID(ctx, runID), "move")

	release, err := e.acquireLock()
	if err != nil {
		return mover.Summary{DryRun: e.cfg.DryRun}, err
	}
	defer release()

	started := e.now()
	exec := mover.New(e.deps.Journal, mover.Options{
		DryRun:  e.cfg.DryRun,
		RunID:   runID,
		Logger:  logging.WithContext(ctx, e.deps.Logger),
		Metrics: e.deps.Metrics,
		Progress: func(done, total int, entry plan.Entry, outcome string) {
			e.emit(ctx, Event{Type: EventMoveProgress, RunID: runID, Done: done, Total: total, Path: entry.Source, Outcome: outcome})
		},
	})
	summary, runErr := exec.Execute(ctx, p)

	finished := e.now()
	e.finishRun(ctx, history.Run{
		RunID:      runID,
		Kind:       history.KindOrganize,
		Root:       p.Root,
		StartedAt:  started,
		FinishedAt: finished,
		DryRun:     e.cfg.DryRun,
		Offline:    e.cfg.Offline,
		Moved:      summary.Moved,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		Degraded:   p.Stats().Degraded,
	}, runErr)
	return summary, runErr
}

// OrganizeResult is the outcome of Organize.
type OrganizeResult struct {
	Plan    *plan.Plan
	Summary mover.Summary
}

// ConfirmPlan decides whether a plan should be executed. A nil ConfirmPlan
// accepts every plan.
type ConfirmPlan func(p *plan.Plan) (bool, error)

// Organize plans, asks confirm, then executes. Dry runs skip the
// confirmation. Declining returns ErrDeclined without moving anything or
// writing the journal. The run lock is held for the whole pass.
func (e *Engine) Organize(ctx context.Context, confirm ConfirmPlan) (OrganizeResult, error) {
	release, err := e.acquireLock()
	if err != nil {
		return OrganizeResult{}, err
	}
	defer release()

	p, err := e.Plan(ctx)
	if err != nil {
		return OrganizeResult{}, err
	}
	result := OrganizeResult{Plan: p, Summary: mover.Summary{DryRun: e.cfg.DryRun}}
	if p.Empty() {
		e.logger.Info("nothing to organize", logging.String("root", p.Root))
		e.emit(ctx, Event{Type: EventDone, RunID: p.RunID})
		return result, nil
	}
	if !e.cfg.DryRun && confirm != nil {
		ok, err := confirm(p)
		if err != nil {
			return result, fmt.Errorf("confirm plan: %w", err)
		}
		if !ok {
			e.logger.Info("plan declined",
				logging.String(logging.FieldDecisionType, "plan_confirmation"),
				logging.String(logging.FieldDecisionResult, "declined"),
			)
			e.emit(ctx, Event{Type: EventDone, RunID: p.RunID, Err: ErrDeclined})
			return result, ErrDeclined
		}
	}
	summary, err := e.Execute(ctx, p)
	result.Summary = summary
	return result, err
}

// finishRun records history and metrics and emits the done event.
func (e *Engine) finishRun(ctx context.Context, run history.Run, runErr error) {
	logger := logging.WithContext(ctx, e.logger)
	if runErr != nil {
		run.Error = runErr.Error()
		if !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, ErrDeclined) {
			logging.ErrorWithContext(logger, "run failed", "run_failed",
				logging.String("kind", run.Kind),
				logging.Path(run.Root),
				logging.Error(runErr),
			)
		}
	}
	duration := run.FinishedAt.Sub(run.StartedAt)
	e.deps.Metrics.RecordRun(run.Kind, duration)

	if e.deps.History != nil {
		// A cancelled run context must not prevent the ledger write.
		histCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if _, err := e.deps.History.Record(histCtx, run); err != nil {
			logger.Warn("run not recorded in history",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_record_failed"),
				logging.String(logging.FieldErrorHint, "check the history database"),
				logging.String(logging.FieldImpact, "run missing from declutter history"),
			)
		} else if e.deps.HistoryRetention > 0 {
			if removed, err := e.deps.History.Prune(histCtx, run.FinishedAt.Add(-e.deps.HistoryRetention)); err == nil && removed > 0 {
				logger.Debug("pruned history", logging.Int64("removed", removed))
			}
		}
		cancel()
	}

	if e.deps.MetricsTextfile != "" {
		if err := e.deps.Metrics.WriteTextfile(e.deps.MetricsTextfile); err != nil {
			logger.Warn("metrics textfile not written",
				logging.Path(e.deps.MetricsTextfile),
				logging.Error(err),
				logging.String(logging.FieldEventType, "metrics_write_failed"),
				logging.String(logging.FieldErrorHint, "metrics.textfile must end in .prom and be writable"),
			)
		}
	}

	logger.Info("run finished",
		logging.String("kind", run.Kind),
		logging.Int("moved", run.Moved),
		logging.Int("restored", run.Restored),
		logging.Int("skipped", run.Skipped),
		logging.Int("failed", run.Failed),
		logging.Bool("dry_run", run.DryRun),
		logging.Duration("duration", duration),
	)
	e.emit(ctx, Event{Type: EventDone, RunID: run.RunID, Err: runErr})
}

// acquireLock takes the advisory run lock. Nested calls on the same engine
// share the lock; the returned func releases one level.
func (e *Engine) acquireLock() (func(), error) {
	if e.lock == nil {
		return func() {}, nil
	}
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	if e.lockDepth == 0 {
		ok, err := e.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
	}
	e.lockDepth++
	return func() {
		e.lockMu.Lock()
		defer e.lockMu.Unlock()
		e.lockDepth--
		if e.lockDepth == 0 {
			if err := e.lock.Unlock(); err != nil {
				e.logger.Warn("failed to release run lock", logging.Error(err))
			}
		}
	}, nil
}
