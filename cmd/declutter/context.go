package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"declutter/internal/config"
	"declutter/internal/engine"
	"declutter/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	deps *engine.Deps
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		if c.jsonOutput() {
			cfg.Logging.Format = "json"
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// ensureLogger builds the run logger and prunes old log files once.
func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
		current := filepath.Join(cfg.Paths.LogDir, logging.LogFileName(time.Now()))
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, logging.LogFilePattern, current)
	})
	return c.logger
}

// openDeps opens the state files once per command invocation.
func (c *commandContext) openDeps(ctx context.Context, online bool) (*engine.Deps, error) {
	if c.deps != nil {
		return c.deps, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	deps, err := engine.OpenDeps(ctx, cfg, c.ensureLogger(), online)
	if err != nil {
		return nil, err
	}
	c.deps = deps
	return deps, nil
}

func (c *commandContext) close() {
	if c.deps != nil {
		_ = c.deps.Close()
		c.deps = nil
	}
}

// runConfig resolves engine settings from config plus command flags. The
// first positional argument, when present, replaces organize.target_dir.
func (c *commandContext) runConfig(cmd *cobra.Command, args []string, flags *runFlags) (engine.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return engine.Config{}, err
	}
	run, fellBack, err := engine.FromConfig(cfg)
	if err != nil && !flags.offline {
		return engine.Config{}, err
	}
	if len(args) > 0 {
		run.Root = args[0]
	}
	if strings.TrimSpace(run.Root) == "" {
		run.Root = "."
	}
	flags.apply(cmd, &run)
	if fellBack && !flags.offline {
		c.ensureLogger().Warn("no API key configured; using offline extension rules",
			logging.String(logging.FieldEventType, "offline_fallback"),
			logging.String(logging.FieldErrorHint, "set llm.api_key or DECLUTTER_API_KEY for smarter categories"),
		)
	}
	return run, nil
}

// runFlags are the organize/undo/watch flags that override config.
type runFlags struct {
	dryRun        bool
	recursive     bool
	offline       bool
	maxConcurrent int
	deep          bool
	overwrite     bool
	yes           bool
	undoRunID     string
}

func (f *runFlags) apply(cmd *cobra.Command, run *engine.Config) {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		run.DryRun = f.dryRun
	}
	if flags.Changed("recursive") {
		run.Recursive = f.recursive
	}
	if flags.Changed("offline") && f.offline {
		run.Offline = true
	}
	if flags.Changed("max-concurrent") && f.maxConcurrent > 0 {
		run.MaxConcurrent = f.maxConcurrent
	}
	if flags.Changed("deep") {
		run.DeepInspection = f.deep
	}
	if flags.Changed("overwrite") {
		run.Overwrite = f.overwrite
	}
	if f.undoRunID != "" {
		run.UndoRunID = f.undoRunID
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}
