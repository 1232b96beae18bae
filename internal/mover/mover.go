package mover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"declutter/internal/fileutil"
	"declutter/internal/journal"
	"declutter/internal/logging"
	"declutter/internal/metrics"
	"declutter/internal/plan"
	"declutter/internal/services"
)

// Outcomes reported per entry.
const (
	OutcomeMoved   = metrics.OutcomeMoved
	OutcomeSkipped = metrics.OutcomeSkipped
	OutcomeFailed  = metrics.OutcomeFailed
)

// Journal is the slice of the undo journal the executor writes to.
type Journal interface {
	Append(rec journal.Record) error
}

// Options configures an Executor.
type Options struct {
	DryRun  bool
	RunID   string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Progress is called after each entry with its outcome.
	Progress func(done, total int, entry plan.Entry, outcome string)
}

// Summary aggregates an execution.
type Summary struct {
	Moved   int
	Skipped int
	Failed  int
	Errors  []journal.FileError
	DryRun  bool
}

// Executor moves files and journals every move.
type Executor struct {
	journal Journal
	opts    Options
	logger  *slog.Logger
}

// New builds an executor. The journal is required unless opts.DryRun is set.
func New(j Journal, opts Options) *Executor {
	return &Executor{
		journal: j,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "mover"),
	}
}

// Execute runs every non in-place entry of p in order. It returns early only
// when the context is cancelled or the journal cannot be written; the
// summary covers everything done up to that point.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (Summary, error) {
	summary := Summary{DryRun: e.opts.DryRun}
	if p == nil {
		return summary, nil
	}
	if e.journal == nil && !e.opts.DryRun {
		return summary, services.Wrap(services.ErrConfiguration, "mover", "execute", "undo journal is not available", nil)
	}
	moves := p.Moves()
	for i, entry := range moves {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, reason, err := e.moveOne(entry, p.Overwrite)
		switch outcome {
		case OutcomeMoved:
			summary.Moved++
		case OutcomeSkipped:
			summary.Skipped++
			summary.Errors = append(summary.Errors, journal.FileError{Path: entry.Source, Reason: reason})
		case OutcomeFailed:
			summary.Failed++
			summary.Errors = append(summary.Errors, journal.FileError{Path: entry.Source, Reason: reason})
		}
		e.opts.Metrics.RecordMove(outcome)
		if e.opts.Progress != nil {
			e.opts.Progress(i+1, len(moves), entry, outcome)
		}
		if err != nil {
			return summary, err
		}
	}

	e.logger.Info("moves finished",
		logging.Int("moved", summary.Moved),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Bool("dry_run", summary.DryRun),
	)
	return summary, nil
}

// moveOne returns the entry outcome. A non-nil error means the run must stop.
func (e *Executor) moveOne(entry plan.Entry, overwrite bool) (string, string, error) {
	if !fileutil.IsRegularFile(entry.Source) {
		return OutcomeFailed, "source file no longer exists", e.record(entry, journal.StatusFailed, "source missing")
	}
	if fileutil.Exists(entry.Destination) {
		if !overwrite || !fileutil.IsRegularFile(entry.Destination) {
			e.logger.Info("destination exists; skipping",
				logging.Path(entry.Source),
				logging.String("destination", entry.Destination),
				logging.String(logging.FieldDecisionType, "move_conflict"),
				logging.String(logging.FieldDecisionResult, "skipped"),
			)
			return OutcomeSkipped, "destination already exists", e.record(entry, journal.StatusFailed, journal.ReasonConflict)
		}
	}
	if e.opts.DryRun {
		return OutcomeMoved, "", nil
	}

	if err := os.MkdirAll(filepath.Dir(entry.Destination), 0o755); err != nil {
		return e.failed(entry, fmt.Errorf("create destination directory: %w", err))
	}
	copied, err := fileutil.MoveFile(entry.Source, entry.Destination)
	if err != nil {
		return e.failed(entry, err)
	}
	if err := e.record(entry, journal.StatusCompleted, ""); err != nil {
		// Every file left at its destination must have a journal entry.
		if _, rollbackErr := fileutil.MoveFile(entry.Destination, entry.Source); rollbackErr != nil {
			err = errors.Join(err, fmt.Errorf("restore %s: %w", entry.Source, rollbackErr))
		}
		return OutcomeFailed, "journal write failed", err
	}
	e.logger.Debug("file moved",
		logging.Path(entry.Source),
		logging.String("destination", entry.Destination),
		logging.Bool("copied", copied),
	)
	return OutcomeMoved, "", nil
}

func (e *Executor) failed(entry plan.Entry, err error) (string, string, error) {
	hint := "check permissions on the source and destination"
	if isTargetUnavailable(err) {
		hint = "the target file system looks unavailable; check the mount"
	}
	logging.WarnWithContext(e.logger, "move failed", "move_failed",
		logging.Path(entry.Source),
		logging.String("destination", entry.Destination),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "file left in place"),
	)
	return OutcomeFailed, err.Error(), e.record(entry, journal.StatusFailed, err.Error())
}

// record appends a journal entry. Dry runs never touch the journal.
func (e *Executor) record(entry plan.Entry, status journal.Status, reason string) error {
	if e.opts.DryRun {
		return nil
	}
	err := e.journal.Append(journal.Record{
		Source:      entry.Source,
		Destination: entry.Destination,
		Status:      status,
		Reason:      reason,
		RunID:       e.opts.RunID,
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "mover", "journal append", "undo journal could not be written", err)
	}
	return nil
}

var targetUnavailableErrors = []error{
	syscall.ENODEV,
	syscall.ENOTCONN,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EIO,
	syscall.ESTALE,
	syscall.EROFS,
}

func isTargetUnavailable(err error) bool {
	for _, target := range targetUnavailableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
