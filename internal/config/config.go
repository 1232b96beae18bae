package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the locations of declutter's state files.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	CacheFile   string `toml:"cache_file"`
	JournalFile string `toml:"journal_file"`
	HistoryDB   string `toml:"history_db"`
	LockFile    string `toml:"lock_file"`
}

// LLM contains the categorization service connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryBaseMS    int    `toml:"retry_base_ms"`
	RetryMaxMS     int    `toml:"retry_max_ms"`
}

// Organize contains the defaults for organize runs. CLI flags override them.
type Organize struct {
	TargetDir       string   `toml:"target_dir"`
	Recursive       bool     `toml:"recursive"`
	MaxConcurrent   int      `toml:"max_concurrent"`
	Categories      []string `toml:"categories"`
	DeepInspection  bool     `toml:"deep_inspection"`
	Overwrite       bool     `toml:"overwrite"`
	Offline         bool     `toml:"offline"`
	FallbackOffline bool     `toml:"fallback_offline"`
}

// Cache contains the response cache policy.
type Cache struct {
	TTLDays    int `toml:"ttl_days"`
	MaxEntries int `toml:"max_entries"`
}

// Journal contains the undo journal retention policy.
type Journal struct {
	RetentionDays int `toml:"retention_days"`
	MaxEntries    int `toml:"max_entries"`
}

// History contains the run history ledger settings.
type History struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Watch contains settings for the directory watcher.
type Watch struct {
	SettleSeconds int `toml:"settle_seconds"`
}

// Metrics contains the Prometheus textfile export settings.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for declutter.
//
// Configuration sections by subsystem:
//   - Paths: state files (cache, journal, history, lock) and logs
//   - LLM: categorization service endpoint, model and retry policy
//   - Organize: defaults for organize runs
//   - Cache: response cache TTL and capacity
//   - Journal: undo journal retention
//   - History: run ledger
//   - Watch: directory watcher
//   - Metrics: Prometheus textfile export
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	LLM      LLM      `toml:"llm"`
	Organize Organize `toml:"organize"`
	Cache    Cache    `toml:"cache"`
	Journal  Journal  `toml:"journal"`
	History  History  `toml:"history"`
	Watch    Watch    `toml:"watch"`
	Metrics  Metrics  `toml:"metrics"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("declutter.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories holding declutter's state files.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.CacheFile),
		filepath.Dir(c.Paths.JournalFile),
		filepath.Dir(c.Paths.HistoryDB),
		filepath.Dir(c.Paths.LockFile),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved categorization service settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	RetryAttempts  int
	RetryBaseMS    int
	RetryMaxMS     int
}

// GetLLM returns the categorization service connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		RetryAttempts:  c.LLM.RetryAttempts,
		RetryBaseMS:    c.LLM.RetryBaseMS,
		RetryMaxMS:     c.LLM.RetryMaxMS,
	}
}

// HasLLMKey reports whether an API key for the categorization service is configured.
func (c *Config) HasLLMKey() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}
