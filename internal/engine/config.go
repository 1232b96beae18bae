package engine

import (
	"path/filepath"
	"slices"
	"strings"

	"declutter/internal/config"
	"declutter/internal/services"
)

// Config is the immutable input of a run. Build it once with FromConfig or a
// literal and never change it afterwards; the engine keeps its own copy.
type Config struct {
	Root           string
	Recursive      bool
	MaxConcurrent  int
	Offline        bool
	Categories     []string
	DryRun         bool
	Overwrite      bool
	DeepInspection bool
	// UndoRunID restricts undo to a single organize run.
	UndoRunID string
}

func (c Config) clone() Config {
	c.Categories = slices.Clone(c.Categories)
	return c
}

// FromConfig derives run settings from the loaded configuration. When no API
// key is configured and offline mode is not requested, the run falls back to
// offline categorization if fallback_offline allows it; fellBack reports
// that. Otherwise a configuration error is returned.
func FromConfig(cfg *config.Config) (run Config, fellBack bool, err error) {
	if cfg == nil {
		return Config{}, false, services.Wrap(services.ErrConfiguration, "engine", "config", "configuration is required", nil)
	}
	run = Config{
		Root:           cfg.Organize.TargetDir,
		Recursive:      cfg.Organize.Recursive,
		MaxConcurrent:  cfg.Organize.MaxConcurrent,
		Offline:        cfg.Organize.Offline,
		Categories:     config.NormalizeCategories(cfg.Organize.Categories),
		Overwrite:      cfg.Organize.Overwrite,
		DeepInspection: cfg.Organize.DeepInspection,
	}
	if !run.Offline && !cfg.HasLLMKey() {
		if !cfg.Organize.FallbackOffline {
			return run, false, services.Wrap(services.ErrConfiguration, "engine", "config",
				"no API key configured; set llm.api_key or DECLUTTER_API_KEY, or run with --offline", nil)
		}
		run.Offline = true
		fellBack = true
	}
	return run, fellBack, nil
}

func (c Config) validate() (Config, error) {
	c = c.clone()
	root := strings.TrimSpace(c.Root)
	if root == "" {
		return c, services.Wrap(services.ErrConfiguration, "engine", "config", "target directory is required", nil)
	}
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return c, services.Wrap(services.ErrConfiguration, "engine", "config", "expand target directory", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return c, services.Wrap(services.ErrConfiguration, "engine", "config", "resolve target directory", err)
	}
	c.Root = abs
	c.Categories = config.NormalizeCategories(c.Categories)
	return c, nil
}
