package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"declutter/internal/history"
	"declutter/internal/journal"
	"declutter/internal/logging"
	"declutter/internal/metrics"
	"declutter/internal/services"
)

// ConfirmUndo decides whether an undo preview should be applied. A nil
// ConfirmUndo accepts every preview.
type ConfirmUndo func(preview journal.UndoSummary) (bool, error)

// UndoPreview evaluates every undo candidate without changing anything.
func (e *Engine) UndoPreview(ctx context.Context) (journal.UndoSummary, error) {
	return e.deps.Journal.Undo(ctx, journal.UndoOptions{DryRun: true, RunID: e.cfg.UndoRunID})
}

// Undo previews the journal, asks confirm and restores every candidate that
// is still safe to restore. Dry runs return the preview. Declining returns
// ErrDeclined with the preview.
func (e *Engine) Undo(ctx context.Context, confirm ConfirmUndo) (journal.UndoSummary, error) {
	runID := uuid.NewString()
	ctx = services.WithPhase(services.WithRunID(ctx, runID), "undo")
	logger := logging.WithContext(ctx, e.logger)

	release, err := e.acquireLock()
	if err != nil {
		return journal.UndoSummary{}, err
	}
	defer release()

	preview, err := e.UndoPreview(ctx)
	if err != nil {
		return preview, err
	}
	if len(preview.Outcomes) == 0 {
		logger.Info("nothing to undo")
		e.emit(ctx, Event{Type: EventDone, RunID: runID})
		return preview, nil
	}
	if e.cfg.DryRun {
		e.emit(ctx, Event{Type: EventDone, RunID: runID})
		return preview, nil
	}
	if confirm != nil {
		ok, err := confirm(preview)
		if err != nil {
			return preview, fmt.Errorf("confirm undo: %w", err)
		}
		if !ok {
			logger.Info("undo declined",
				logging.String(logging.FieldDecisionType, "undo_confirmation"),
				logging.String(logging.FieldDecisionResult, "declined"),
			)
			e.emit(ctx, Event{Type: EventDone, RunID: runID, Err: ErrDeclined})
			return preview, ErrDeclined
		}
	}

	started := e.now()
	summary, runErr := e.deps.Journal.Undo(ctx, journal.UndoOptions{
		RunID: e.cfg.UndoRunID,
		Progress: func(done, total int, outcome journal.UndoOutcome) {
			e.recordUndoMetric(outcome.Outcome)
			e.emit(ctx, Event{
				Type:    EventUndoProgress,
				RunID:   runID,
				Done:    done,
				Total:   total,
				Path:    outcome.Source,
				Outcome: outcome.Outcome,
			})
		},
	})
	e.finishRun(ctx, history.Run{
		RunID:      runID,
		Kind:       history.KindUndo,
		Root:       e.cfg.Root,
		StartedAt:  started,
		FinishedAt: e.now(),
		Restored:   summary.Restored,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
	}, runErr)
	return summary, runErr
}

func (e *Engine) recordUndoMetric(outcome string) {
	switch outcome {
	case journal.OutcomeRestored:
		e.deps.Metrics.RecordUndo(metrics.OutcomeRestored)
	case journal.OutcomeSkipped:
		e.deps.Metrics.RecordUndo(metrics.OutcomeSkipped)
	default:
		e.deps.Metrics.RecordUndo(metrics.OutcomeFailed)
	}
}
