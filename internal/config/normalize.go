package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	if err := c.normalizeOrganize(); err != nil {
		return err
	}
	c.normalizeRetention()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
		if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
			c.Paths.DataDir = filepath.Join(base, "declutter")
		}
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	derived := []struct {
		key   string
		value *string
		name  string
	}{
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDirName},
		{"paths.cache_file", &c.Paths.CacheFile, defaultCacheFileName},
		{"paths.journal_file", &c.Paths.JournalFile, defaultJournalFileName},
		{"paths.history_db", &c.Paths.HistoryDB, defaultHistoryDBName},
		{"paths.lock_file", &c.Paths.LockFile, defaultLockFileName},
	}
	for _, field := range derived {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = filepath.Join(c.Paths.DataDir, field.name)
		}
		if *field.value, err = expandPath(strings.TrimSpace(*field.value)); err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if value, ok := os.LookupEnv("DECLUTTER_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.LLM.APIKey = value
	} else if strings.TrimSpace(c.LLM.APIKey) == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
	if c.LLM.RetryBaseMS < 0 {
		c.LLM.RetryBaseMS = defaultLLMRetryBaseMS
	}
	if c.LLM.RetryMaxMS <= 0 {
		c.LLM.RetryMaxMS = defaultLLMRetryMaxMS
	}
}

func (c *Config) normalizeOrganize() error {
	if target := strings.TrimSpace(c.Organize.TargetDir); target != "" {
		expanded, err := expandPath(target)
		if err != nil {
			return fmt.Errorf("organize.target_dir: %w", err)
		}
		c.Organize.TargetDir = expanded
	}
	if c.Organize.MaxConcurrent <= 0 {
		c.Organize.MaxConcurrent = defaultMaxConcurrent
	}
	c.Organize.Categories = NormalizeCategories(c.Organize.Categories)
	return nil
}

// NormalizeCategories trims, de-duplicates (case-insensitively) and orders a
// category list. "Misc" is always present and always last so fallbacks have a
// destination. An empty list yields DefaultCategories.
func NormalizeCategories(categories []string) []string {
	if len(categories) == 0 {
		return append([]string(nil), DefaultCategories...)
	}
	out := make([]string, 0, len(categories)+1)
	seen := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		trimmed := strings.TrimSpace(category)
		key := strings.ToLower(trimmed)
		if trimmed == "" || key == "misc" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return append(out, "Misc")
}

func (c *Config) normalizeRetention() {
	if c.Cache.TTLDays <= 0 {
		c.Cache.TTLDays = defaultCacheTTLDays
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = defaultCacheMaxEntries
	}
	if c.Journal.RetentionDays <= 0 {
		c.Journal.RetentionDays = defaultJournalRetention
	}
	if c.Journal.MaxEntries <= 0 {
		c.Journal.MaxEntries = defaultJournalMaxEntries
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
	if c.Watch.SettleSeconds <= 0 {
		c.Watch.SettleSeconds = defaultWatchSettleSeconds
	}
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
