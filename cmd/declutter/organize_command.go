package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"declutter/internal/categorize"
	"declutter/internal/engine"
	"declutter/internal/mover"
	"declutter/internal/plan"
)

// maxListedMoves caps the per-file preview table.
const maxListedMoves = 30

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "organize [dir]",
		Short: "Categorize the files in a directory and move them into folders",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			run, err := ctx.runConfig(cmd, args, flags)
			if err != nil {
				return err
			}
			deps, err := ctx.openDeps(cmd.Context(), !run.Offline)
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
			result, err := e.Organize(cmd.Context(), func(p *plan.Plan) (bool, error) {
				progress.Pause()
				defer progress.Resume()
				if !ctx.jsonOutput() {
					printPlan(out, p)
				}
				return confirmAction(
					fmt.Sprintf("Move %s?", plural(p.Stats().Moves, "file", "files")),
					"Every move is journaled; `declutter undo` puts files back.",
					flags.yes,
				)
			})
			progress.Stop()
			if err != nil {
				if result.Plan != nil && ctx.jsonOutput() {
					_ = writeJSON(cmd, organizeJSON(result, run))
				}
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, organizeJSON(result, run))
			}
			if run.DryRun && result.Plan != nil {
				printPlan(out, result.Plan)
			}
			printMoveSummary(out, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show the plan without moving anything")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Include files in subdirectories")
	cmd.Flags().BoolVar(&flags.offline, "offline", false, "Categorize by file extension only; no network calls")
	cmd.Flags().IntVar(&flags.maxConcurrent, "max-concurrent", 0, "Maximum categorization requests in flight")
	cmd.Flags().BoolVar(&flags.deep, "deep", false, "Send a sample of text files for sub-folder suggestions")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace files that already exist at the destination")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Apply the plan without asking")
	return cmd
}

func printPlan(out io.Writer, p *plan.Plan) {
	stats := p.Stats()
	if stats.Moves == 0 {
		fmt.Fprintf(out, "Nothing to organize in %s\n", p.Root)
		return
	}

	folders := p.Folders()
	rows := make([][]string, 0, len(folders))
	for _, folder := range folders {
		rows = append(rows, []string{folder.Folder, strconv.Itoa(folder.Files)})
	}
	fmt.Fprintln(out, tableSpec{
		headers: []string{"Folder", "Files"},
		rows:    rows,
		footer:  []string{"Total", strconv.Itoa(stats.Moves)},
		aligns:  []columnAlignment{alignLeft, alignRight},
	}.render())

	moves := p.Moves()
	if len(moves) <= maxListedMoves {
		rows = rows[:0]
		for _, entry := range moves {
			note := string(entry.Result.Source)
			switch {
			case entry.Conflict && !p.Overwrite:
				note = "exists, will skip"
			case entry.Conflict:
				note = "exists, will replace"
			case entry.Renamed:
				note += ", renamed"
			}
			rows = append(rows, []string{
				relPath(p.Root, entry.Source),
				relPath(p.Root, entry.Destination),
				formatBytes(entry.Size),
				note,
			})
		}
		fmt.Fprintln(out, tableSpec{
			headers:  []string{"File", "Destination", "Size", "Note"},
			rows:     rows,
			aligns:   []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			maxWidth: map[int]int{0: 48, 1: 60},
		}.render())
	}

	fmt.Fprintf(out, "%s to move (%s)", plural(stats.Moves, "file", "files"), formatBytes(stats.Bytes))
	if stats.InPlace > 0 {
		fmt.Fprintf(out, ", %d already in place", stats.InPlace)
	}
	if stats.Conflicts > 0 {
		fmt.Fprintf(out, ", %s", plural(stats.Conflicts, "conflict", "conflicts"))
	}
	if stats.Degraded > 0 {
		fmt.Fprintf(out, ", %d categorized by fallback rules", stats.Degraded)
	}
	fmt.Fprintln(out)
}

func printMoveSummary(out io.Writer, result engine.OrganizeResult) {
	s := result.Summary
	if result.Plan != nil && result.Plan.Empty() {
		if !s.DryRun {
			fmt.Fprintf(out, "Nothing to organize in %s\n", result.Plan.Root)
		}
		return
	}
	verb := "Moved"
	if s.DryRun {
		verb = "Dry run: would move"
	}
	fmt.Fprintf(out, "%s %s, skipped %d, failed %d\n", verb, plural(s.Moved, "file", "files"), s.Skipped, s.Failed)
	printFileErrors(out, s)
}

func printFileErrors(out io.Writer, s mover.Summary) {
	for _, fe := range s.Errors {
		fmt.Fprintf(out, "  %s\n", fe.String())
	}
}

type organizeOutput struct {
	RunID   string      `json:"run_id"`
	Root    string      `json:"root"`
	DryRun  bool        `json:"dry_run"`
	Offline bool        `json:"offline"`
	Moves   []moveJSON  `json:"moves"`
	Moved   int         `json:"moved"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Errors  []jsonError `json:"errors,omitempty"`
}

type moveJSON struct {
	Source        string `json:"source"`
	Destination   string `json:"destination"`
	Size          int64  `json:"size"`
	CategorizedBy string `json:"categorized_by"`
	Degraded      bool   `json:"degraded,omitempty"`
	Conflict      bool   `json:"conflict,omitempty"`
}

func organizeJSON(result engine.OrganizeResult, run engine.Config) organizeOutput {
	out := organizeOutput{
		DryRun:  result.Summary.DryRun,
		Offline: run.Offline,
		Moved:   result.Summary.Moved,
		Skipped: result.Summary.Skipped,
		Failed:  result.Summary.Failed,
		Moves:   []moveJSON{},
	}
	if p := result.Plan; p != nil {
		out.RunID = p.RunID
		out.Root = p.Root
		for _, entry := range p.Moves() {
			out.Moves = append(out.Moves, moveJSON{
				Source:        entry.Source,
				Destination:   entry.Destination,
				Size:          entry.Size,
				CategorizedBy: string(entry.Result.Source),
				Degraded:      entry.Result.Kind != categorize.KindSuccess,
				Conflict:      entry.Conflict,
			})
		}
	}
	for _, fe := range result.Summary.Errors {
		out.Errors = append(out.Errors, jsonError{Path: fe.Path, Reason: fe.Reason})
	}
	return out
}
