package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"declutter/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent organize and undo runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run history is disabled (set history.enabled = true in config.toml)")
			}
			store, err := history.Open(cmd.Context(), cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				run, ok, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("run %s not found", args[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, historyJSON(run))
				}
				printRunDetail(cmd, run)
				return nil
			}

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				rows := make([]historyRunJSON, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, historyJSON(run))
				}
				return writeJSON(cmd, rows)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				kind := run.Kind
				if run.DryRun {
					kind += " (dry run)"
				}
				changed := run.Moved
				if run.Kind == history.KindUndo {
					changed = run.Restored
				}
				status := "ok"
				if run.Error != "" {
					status = "error"
				}
				rows = append(rows, []string{
					shortID(run.RunID),
					formatAge(run.StartedAt),
					kind,
					relPathHome(run.Root),
					strconv.Itoa(changed),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Failed),
					formatDuration(run.Duration()),
					status,
				})
			}
			fmt.Fprintln(out, tableSpec{
				headers:  []string{"Run", "Started", "Kind", "Directory", "Changed", "Skipped", "Failed", "Took", "Status"},
				rows:     rows,
				aligns:   []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				maxWidth: map[int]int{3: 40},
			}.render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func printRunDetail(cmd *cobra.Command, run history.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", run.RunID)
	fmt.Fprintf(out, "Kind:      %s\n", run.Kind)
	fmt.Fprintf(out, "Directory: %s\n", run.Root)
	fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Took:      %s\n", formatDuration(run.Duration()))
	fmt.Fprintf(out, "Dry run:   %s\n", yesNo(run.DryRun))
	fmt.Fprintf(out, "Offline:   %s\n", yesNo(run.Offline))
	if run.Kind == history.KindUndo {
		fmt.Fprintf(out, "Restored:  %d\n", run.Restored)
	} else {
		fmt.Fprintf(out, "Moved:     %d\n", run.Moved)
		fmt.Fprintf(out, "Degraded:  %d\n", run.Degraded)
	}
	fmt.Fprintf(out, "Skipped:   %d\n", run.Skipped)
	fmt.Fprintf(out, "Failed:    %d\n", run.Failed)
	if run.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", run.Error)
	}
}

type historyRunJSON struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	Root       string    `json:"root"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Offline    bool      `json:"offline"`
	Moved      int       `json:"moved"`
	Restored   int       `json:"restored"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Degraded   int       `json:"degraded"`
	Error      string    `json:"error,omitempty"`
}

func historyJSON(run history.Run) historyRunJSON {
	return historyRunJSON{
		RunID:      run.RunID,
		Kind:       run.Kind,
		Root:       run.Root,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DryRun:     run.DryRun,
		Offline:    run.Offline,
		Moved:      run.Moved,
		Restored:   run.Restored,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		Degraded:   run.Degraded,
		Error:      run.Error,
	}
}
