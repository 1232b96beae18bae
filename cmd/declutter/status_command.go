package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"declutter/internal/config"
	"declutter/internal/history"
	"declutter/internal/journal"
	"declutter/internal/preflight"
	"declutter/internal/respcache"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, state files and the categorization service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			if ctx.jsonOutput() {
				snapshot := statusSnapshot(ctx.configPath, cfg, results)
				if err := writeJSON(cmd, snapshot); err != nil {
					return err
				}
				if !snapshot.Healthy {
					return errStatusUnhealthy
				}
				return nil
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			configLines := []string{
				renderStatusLine("Config file", statusInfo, configFileDetail(ctx.configPath), colorize),
				renderStatusLine("Model", statusInfo, cfg.LLM.Model, colorize),
				renderStatusLine("Categories", statusInfo, fmt.Sprintf("%d configured", len(cfg.Organize.Categories)), colorize),
			}
			if !cfg.HasLLMKey() && !cfg.Organize.Offline {
				kind := statusError
				detail := "No API key; organize will fail (set DECLUTTER_API_KEY)"
				if cfg.Organize.FallbackOffline {
					kind = statusWarn
					detail = "No API key; organize falls back to extension rules"
				}
				configLines = append(configLines, renderStatusLine("API key", kind, detail, colorize))
			}
			writeSection(out, "Configuration", configLines, colorize)
			fmt.Fprintln(out)

			checkLines := make([]string, 0, len(results))
			for _, result := range results {
				checkLines = append(checkLines, preflightLine(result, softChecks, colorize))
			}
			writeSection(out, "Checks", checkLines, colorize)
			fmt.Fprintln(out)

			writeSection(out, "State", stateLines(cmd, cfg, colorize), colorize)

			if hard := hardFailures(results, softChecks); len(hard) > 0 {
				return errStatusUnhealthy
			}
			return nil
		},
	}
}

var errStatusUnhealthy = errors.New("one or more checks failed")

// softChecks only warn: a held lock just means a run is in progress.
var softChecks = map[string]bool{"Run lock": true}

func hardFailures(results []preflight.Result, soft map[string]bool) []preflight.Result {
	var out []preflight.Result
	for _, r := range preflight.Failed(results) {
		if !soft[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

func configFileDetail(path string) string {
	if path == "" {
		return "defaults (no config file)"
	}
	return path
}

func stateLines(cmd *cobra.Command, cfg *config.Config, colorize bool) []string {
	var lines []string

	cache, err := respcache.Open(cfg.Paths.CacheFile, respcache.Options{
		TTL:        time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	if err != nil {
		lines = append(lines, renderStatusLine("Cached answers", statusWarn, err.Error(), colorize))
	} else {
		lines = append(lines, renderStatusLine("Cached answers", statusInfo,
			fmt.Sprintf("%d of %d", cache.Len(), cfg.Cache.MaxEntries), colorize))
	}

	j, err := journal.Open(cfg.Paths.JournalFile, journal.Options{
		Retention:  time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour,
		MaxEntries: cfg.Journal.MaxEntries,
	})
	if err != nil {
		lines = append(lines, renderStatusLine("Undoable moves", statusWarn, err.Error(), colorize))
	} else {
		cands := j.Candidates("")
		detail := plural(len(cands), "move", "moves")
		if n := len(cands); n > 0 {
			detail += ", last " + formatAge(cands[n-1].Timestamp)
			if id := j.LastRunID(); id != "" {
				detail += " (run " + shortID(id) + ")"
			}
		}
		lines = append(lines, renderStatusLine("Undoable moves", statusInfo, detail, colorize))
	}

	if cfg.History.Enabled {
		if last, ok := lastRun(cmd, cfg); ok {
			detail := fmt.Sprintf("%s %s in %s", last.Kind, formatAge(last.StartedAt), relPathHome(last.Root))
			kind := statusInfo
			if last.Error != "" {
				kind = statusWarn
				detail += " (" + last.Error + ")"
			}
			lines = append(lines, renderStatusLine("Last run", kind, detail, colorize))
		} else {
			lines = append(lines, renderStatusLine("Last run", statusInfo, "none recorded", colorize))
		}
	}
	return lines
}

func lastRun(cmd *cobra.Command, cfg *config.Config) (history.Run, bool) {
	store, err := history.Open(cmd.Context(), cfg.Paths.HistoryDB)
	if err != nil {
		return history.Run{}, false
	}
	defer store.Close()
	runs, err := store.List(cmd.Context(), 1)
	if err != nil || len(runs) == 0 {
		return history.Run{}, false
	}
	return runs[0], true
}

type statusOutput struct {
	ConfigFile string        `json:"config_file,omitempty"`
	Model      string        `json:"model"`
	Offline    bool          `json:"offline"`
	Healthy    bool          `json:"healthy"`
	Checks     []statusCheck `json:"checks"`
}

type statusCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func statusSnapshot(configPath string, cfg *config.Config, results []preflight.Result) statusOutput {
	out := statusOutput{
		ConfigFile: configPath,
		Model:      cfg.LLM.Model,
		Offline:    cfg.Organize.Offline,
		Checks:     make([]statusCheck, 0, len(results)),
	}
	for _, r := range results {
		out.Checks = append(out.Checks, statusCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	out.Healthy = len(hardFailures(results, softChecks)) == 0
	return out
}
