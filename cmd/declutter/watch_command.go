package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"declutter/internal/engine"
	"declutter/internal/logging"
	"declutter/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Organize a directory whenever new files settle in it",
		Long: `Watch a directory and run organize each time new files have stopped
changing for the settle delay. Plans are applied without a prompt; every move
is journaled and can be reverted with "declutter undo".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			run, err := ctx.runConfig(cmd, args, flags)
			if err != nil {
				return err
			}
			// Only the top level is watched.
			run.Recursive = false
			deps, err := ctx.openDeps(cmd.Context(), !run.Offline)
			if err != nil {
				return err
			}
			e, err := engine.New(run, *deps)
			if err != nil {
				return err
			}
			run = e.Config()

			if !cmd.Flags().Changed("settle") {
				settle = time.Duration(cfg.Watch.SettleSeconds) * time.Second
			}
			w, err := watch.New(run.Root, watch.Options{
				Settle: settle,
				Ignore: run.Categories,
				Logger: ctx.ensureLogger(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logger := logging.NewComponentLogger(ctx.ensureLogger(), "watch")
			organize := func(runCtx context.Context, files []string) error {
				logger.Info("organizing after changes",
					logging.Path(run.Root),
					logging.Int("changed", len(files)),
				)
				result, err := e.Organize(runCtx, nil)
				if err != nil {
					return err
				}
				if !ctx.jsonOutput() && result.Plan != nil && !result.Plan.Empty() {
					fmt.Fprintf(out, "%s  ", time.Now().Format(time.TimeOnly))
					printMoveSummary(out, result)
				}
				return nil
			}

			if !ctx.jsonOutput() {
				fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", run.Root)
			}
			// Files already waiting are handled before the first event.
			if err := organize(cmd.Context(), nil); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			err = w.Run(cmd.Context(), organize)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Log the plans without moving anything")
	cmd.Flags().BoolVar(&flags.offline, "offline", false, "Categorize by file extension only; no network calls")
	cmd.Flags().IntVar(&flags.maxConcurrent, "max-concurrent", 0, "Maximum categorization requests in flight")
	cmd.Flags().BoolVar(&flags.deep, "deep", false, "Send a sample of text files for sub-folder suggestions")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace files that already exist at the destination")
	cmd.Flags().DurationVar(&settle, "settle", watch.DefaultSettle, "Quiet period before organizing (default watch.settle_seconds)")
	return cmd
}
