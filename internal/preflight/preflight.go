package preflight

import (
	"context"

	"declutter/internal/config"
	"declutter/internal/services/llm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The service check is skipped when offline mode is configured.
func RunAll(ctx context.Context, cfg *config.Config, opts ...llm.Option) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if cfg.Organize.TargetDir != "" {
		results = append(results, CheckDirectoryAccess("Target directory", cfg.Organize.TargetDir))
	}
	results = append(results,
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckStateFile("Response cache", cfg.Paths.CacheFile),
		CheckStateFile("Undo journal", cfg.Paths.JournalFile),
		CheckRunLock(cfg.Paths.LockFile),
	)
	if cfg.History.Enabled {
		results = append(results, CheckStateFile("Run history", cfg.Paths.HistoryDB))
	}

	if cfg.Organize.Offline {
		results = append(results, Result{Name: "Categorization service", Passed: true, Detail: "Skipped (offline mode)"})
	} else {
		results = append(results, CheckLLM(ctx, "Categorization service", cfg.GetLLM(), opts...))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
