package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"declutter/internal/config"
	"declutter/internal/dispatch"
	"declutter/internal/history"
	"declutter/internal/journal"
	"declutter/internal/logging"
	"declutter/internal/metrics"
	"declutter/internal/respcache"
	"declutter/internal/services/llm"
)

// Deps bundles the collaborators of an Engine. Only Cache and Journal are
// required; Client may be nil when the run is offline.
type Deps struct {
	Client  dispatch.Categorizer
	Cache   *respcache.Cache
	Journal *journal.Journal
	History *history.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Events receives status events. Sends block until the receiver reads
	// them or the run context ends.
	Events chan<- Event
	// LockPath is the advisory run lock. Empty disables locking.
	LockPath string
	// MetricsTextfile is written after every run when set.
	MetricsTextfile string
	// HistoryRetention prunes older history rows after each run.
	HistoryRetention time.Duration
	Now              func() time.Time

	closers []func() error
}

// Close releases resources opened by OpenDeps.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// OpenDeps opens the state files named in cfg and builds the service client.
// The client is only created when online is true.
func OpenDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger, online bool) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("open engine dependencies: configuration is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	deps := &Deps{
		Logger:          logger,
		Metrics:         metrics.New(),
		LockPath:        cfg.Paths.LockFile,
		MetricsTextfile: cfg.Metrics.Textfile,
	}

	cache, err := respcache.Open(cfg.Paths.CacheFile, respcache.Options{
		TTL:        time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
		MaxEntries: cfg.Cache.MaxEntries,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open response cache: %w", err)
	}
	deps.Cache = cache

	j, err := journal.Open(cfg.Paths.JournalFile, journal.Options{
		Retention:  time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour,
		MaxEntries: cfg.Journal.MaxEntries,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open undo journal: %w", err)
	}
	deps.Journal = j

	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.Paths.HistoryDB)
		if err != nil {
			// A broken ledger never blocks a run.
			logging.WarnWithContext(logging.NewComponentLogger(logger, "engine"), "run history unavailable", "history_open_failed",
				logging.Path(cfg.Paths.HistoryDB),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the history database to start a new ledger"),
				logging.String(logging.FieldImpact, "this run will not appear in declutter history"),
			)
		} else {
			deps.History = store
			deps.HistoryRetention = time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
			deps.closers = append(deps.closers, store.Close)
		}
	}

	if online {
		deps.Client = llm.NewClientFrom(cfg.GetLLM(), llm.WithLogger(logger))
	}
	return deps, nil
}
