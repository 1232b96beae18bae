package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"declutter/internal/engine"
	"declutter/internal/journal"
)

func newUndoCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Move organized files back to where they came from",
		Long: `Restore files moved by earlier organize runs, in the order they were moved.
Files whose original location is occupied again, or whose organized copy is
gone, are skipped and stay in the journal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			// Undo never categorizes, so a missing API key is not an error.
			flags.offline = true
			run, err := ctx.runConfig(cmd, nil, flags)
			if err != nil {
				return err
			}
			run.Offline = true
			deps, err := ctx.openDeps(cmd.Context(), false)
			if err != nil {
				return err
			}

			progress := startProgress(cmd.ErrOrStderr(), !ctx.jsonOutput())
			engineDeps := *deps
			engineDeps.Events = progress.Events()
			e, err := engine.New(run, engineDeps)
			if err != nil {
				progress.Stop()
				return err
			}

			out := cmd.OutOrStdout()
			summary, err := e.Undo(cmd.Context(), func(preview journal.UndoSummary) (bool, error) {
				progress.Pause()
				defer progress.Resume()
				if !ctx.jsonOutput() {
					printUndoPreview(out, preview)
				}
				if preview.Restored == 0 {
					return false, nil
				}
				return confirmAction(
					fmt.Sprintf("Restore %s?", plural(preview.Restored, "file", "files")),
					"Files go back to the paths they were organized from.",
					flags.yes,
				)
			})
			progress.Stop()
			if ctx.jsonOutput() {
				if jsonErr := writeJSON(cmd, undoJSON(summary)); jsonErr != nil && err == nil {
					err = jsonErr
				}
				return err
			}
			if err != nil {
				return err
			}
			if summary.DryRun {
				printUndoPreview(out, summary)
				return nil
			}
			printUndoSummary(out, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show what would be restored without moving anything")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Restore without asking")
	cmd.Flags().StringVar(&flags.undoRunID, "run", "", "Only undo moves from this organize run")
	return cmd
}

func printUndoPreview(out io.Writer, preview journal.UndoSummary) {
	if len(preview.Outcomes) == 0 {
		fmt.Fprintln(out, "Nothing to undo")
		return
	}
	rows := make([][]string, 0, len(preview.Outcomes))
	for _, outcome := range preview.Outcomes {
		action := "restore"
		if outcome.Outcome != journal.OutcomeRestored {
			action = "skip: " + outcome.Reason
		}
		rows = append(rows, []string{
			outcome.Destination,
			outcome.Source,
			formatAge(outcome.Timestamp),
			action,
		})
	}
	fmt.Fprintln(out, tableSpec{
		headers:  []string{"Organized", "Restore to", "Moved", "Action"},
		rows:     rows,
		maxWidth: map[int]int{0: 56, 1: 56},
	}.render())
	fmt.Fprintf(out, "%s to restore, %d to skip\n", plural(preview.Restored, "file", "files"), preview.Skipped+preview.Failed)
}

func printUndoSummary(out io.Writer, summary journal.UndoSummary) {
	if len(summary.Outcomes) == 0 {
		fmt.Fprintln(out, "Nothing to undo")
		return
	}
	fmt.Fprintf(out, "Restored %s, skipped %d, failed %d\n",
		plural(summary.Restored, "file", "files"), summary.Skipped, summary.Failed)
	for _, fe := range summary.Errors {
		fmt.Fprintf(out, "  %s\n", fe.String())
	}
	if n := len(summary.RemovedDirs); n > 0 {
		fmt.Fprintf(out, "Removed %s\n", plural(n, "empty folder", "empty folders"))
	}
}

type undoOutput struct {
	DryRun      bool          `json:"dry_run"`
	Restored    int           `json:"restored"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Files       []undoFileRow `json:"files"`
	RemovedDirs []string      `json:"removed_dirs,omitempty"`
}

type undoFileRow struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	RunID       string `json:"run_id,omitempty"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
}

func undoJSON(summary journal.UndoSummary) undoOutput {
	out := undoOutput{
		DryRun:      summary.DryRun,
		Restored:    summary.Restored,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		Files:       make([]undoFileRow, 0, len(summary.Outcomes)),
		RemovedDirs: summary.RemovedDirs,
	}
	for _, outcome := range summary.Outcomes {
		out.Files = append(out.Files, undoFileRow{
			Source:      outcome.Source,
			Destination: outcome.Destination,
			RunID:       outcome.RunID,
			Outcome:     outcome.Outcome,
			Reason:      outcome.Reason,
		})
	}
	return out
}
