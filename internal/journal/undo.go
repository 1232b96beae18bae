package journal

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"declutter/internal/fileutil"
	"declutter/internal/logging"
)

// Undo outcomes.
const (
	OutcomeRestored = "restored"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// UndoOptions controls an undo pass.
type UndoOptions struct {
	// DryRun evaluates every candidate without touching the file system or
	// the journal.
	DryRun bool
	// RunID restricts the pass to one organize run.
	RunID string
	// Progress is called after each candidate.
	Progress func(done, total int, outcome UndoOutcome)
}

// UndoOutcome is what happened (or would happen) to one candidate.
type UndoOutcome struct {
	Record
	Outcome string
	Reason  string
}

// UndoSummary aggregates an undo pass.
type UndoSummary struct {
	Restored    int
	Skipped     int
	Failed      int
	Errors      []FileError
	Outcomes    []UndoOutcome
	RemovedDirs []string
	DryRun      bool
}

// Undo moves every candidate back to its source in recorded order. A
// candidate whose source path is occupied, or whose destination is gone, is
// skipped and stays completed. Restored records are marked undone and
// persisted one by one. Directories emptied by the pass are removed
// afterwards, deepest first, never above the common ancestor of a record's
// source and destination.
func (j *Journal) Undo(ctx context.Context, opts UndoOptions) (UndoSummary, error) {
	summary := UndoSummary{DryRun: opts.DryRun}
	candidates := j.Candidates(opts.RunID)
	cleanup := map[string]string{}
	var sim *dryRunState
	if opts.DryRun {
		sim = &dryRunState{filled: map[string]bool{}, vacated: map[string]bool{}}
	}

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome := j.undoOne(cand, sim)
		switch outcome.Outcome {
		case OutcomeRestored:
			summary.Restored++
			if !opts.DryRun {
				dir := filepath.Dir(cand.Destination)
				cleanup[dir] = commonAncestor(cand.Source, cand.Destination)
			}
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
			summary.Errors = append(summary.Errors, FileError{Path: cand.Destination, Reason: outcome.Reason})
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		if opts.Progress != nil {
			opts.Progress(i+1, len(candidates), outcome)
		}
	}

	if !opts.DryRun {
		summary.RemovedDirs = j.removeEmptyDirs(cleanup)
	}
	j.logger.Info("undo finished",
		logging.Int("restored", summary.Restored),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Int("removed_dirs", len(summary.RemovedDirs)),
		logging.Bool("dry_run", opts.DryRun),
	)
	return summary, nil
}

// dryRunState tracks the paths earlier candidates of a dry run would have
// filled (their sources) and vacated (their destinations).
type dryRunState struct {
	filled  map[string]bool
	vacated map[string]bool
}

func (s *dryRunState) exists(path string) bool {
	if s != nil {
		if s.filled[path] {
			return true
		}
		if s.vacated[path] {
			return false
		}
	}
	return fileutil.Exists(path)
}

// undoOne restores one candidate. A non-nil sim makes it a dry run.
func (j *Journal) undoOne(cand Candidate, sim *dryRunState) UndoOutcome {
	out := UndoOutcome{Record: cand.Record}
	if sim.exists(cand.Source) {
		out.Outcome, out.Reason = OutcomeSkipped, "source path is occupied"
		return out
	}
	if !sim.exists(cand.Destination) {
		out.Outcome, out.Reason = OutcomeSkipped, "file no longer at destination"
		return out
	}
	if sim != nil {
		sim.filled[cand.Source] = true
		delete(sim.filled, cand.Destination)
		sim.vacated[cand.Destination] = true
		delete(sim.vacated, cand.Source)
		out.Outcome = OutcomeRestored
		return out
	}

	if err := os.MkdirAll(filepath.Dir(cand.Source), 0o755); err != nil {
		out.Outcome, out.Reason = OutcomeFailed, "create source directory: "+err.Error()
		return out
	}
	if _, err := fileutil.MoveFile(cand.Destination, cand.Source); err != nil {
		out.Outcome, out.Reason = OutcomeFailed, err.Error()
		j.logger.Warn("undo move failed",
			logging.Path(cand.Destination),
			logging.Error(err),
			logging.String(logging.FieldEventType, "undo_move_failed"),
			logging.String(logging.FieldErrorHint, "check permissions on both paths"),
			logging.String(logging.FieldImpact, "file stays at its organized location"),
		)
		return out
	}
	if err := j.markUndone(cand.Index, cand.Record); err != nil {
		// The file is back but the journal still says completed; a second
		// undo will skip it because the source is occupied.
		out.Outcome, out.Reason = OutcomeFailed, "restored but journal not updated: "+err.Error()
		return out
	}
	out.Outcome = OutcomeRestored
	return out
}

// removeEmptyDirs walks each start directory upwards, removing empty
// directories until it reaches its stop directory or a non-empty one.
func (j *Journal) removeEmptyDirs(starts map[string]string) []string {
	dirs := make([]string, 0, len(starts))
	for dir := range starts {
		dirs = append(dirs, dir)
	}
	// Deepest first so children are gone before their parents are checked.
	slices.SortFunc(dirs, func(a, b string) int {
		if da, db := depth(a), depth(b); da != db {
			return db - da
		}
		return strings.Compare(a, b)
	})

	var removed []string
	for _, dir := range dirs {
		stop := starts[dir]
		for current := dir; isBelow(current, stop); current = filepath.Dir(current) {
			empty, err := isEmptyDir(current)
			if err != nil || !empty {
				break
			}
			if err := os.Remove(current); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					j.logger.Debug("could not remove empty directory",
						logging.Path(current),
						logging.Error(err))
				}
				break
			}
			removed = append(removed, current)
		}
	}
	return removed
}

func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	names, err := f.Readdirnames(1)
	if len(names) > 0 {
		return false, nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return true, nil
}

func depth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}

// isBelow reports whether path is strictly inside ancestor.
func isBelow(path, ancestor string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func commonAncestor(a, b string) string {
	a = filepath.Dir(filepath.Clean(a))
	b = filepath.Clean(b)
	for !isBelow(b, a) && a != filepath.Dir(a) {
		a = filepath.Dir(a)
	}
	return a
}
