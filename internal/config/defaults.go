package config

const (
	defaultConfigPath          = "~/.config/declutter/config.toml"
	defaultDataDir             = "~/.local/share/declutter"
	defaultLogDirName          = "logs"
	defaultCacheFileName       = "cache.json"
	defaultJournalFileName     = "undo_log.json"
	defaultHistoryDBName       = "history.db"
	defaultLockFileName        = "declutter.lock"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-2.5-flash"
	defaultLLMReferer          = "https://github.com/declutter/declutter"
	defaultLLMTitle            = "declutter"
	defaultLLMTimeoutSeconds   = 30
	defaultLLMRetryAttempts    = 3
	defaultLLMRetryBaseMS      = 2000
	defaultLLMRetryMaxMS       = 30000
	defaultMaxConcurrent       = 5
	defaultCacheTTLDays        = 7
	defaultCacheMaxEntries     = 1000
	defaultJournalRetention    = 30
	defaultJournalMaxEntries   = 1000
	defaultHistoryRetention    = 90
	defaultWatchSettleSeconds  = 5
	maxAllowedConcurrency      = 64
	defaultFallbackOfflineMode = true
)

// DefaultCategories is the category set used when none is configured.
var DefaultCategories = []string{"Images", "Documents", "Installers", "Music", "Video", "Archives", "Code", "Misc"}

// Default returns a Config populated with repository defaults. Path fields are
// left for normalize to derive from DataDir.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
			RetryBaseMS:    defaultLLMRetryBaseMS,
			RetryMaxMS:     defaultLLMRetryMaxMS,
		},
		Organize: Organize{
			MaxConcurrent:   defaultMaxConcurrent,
			Categories:      append([]string(nil), DefaultCategories...),
			FallbackOffline: defaultFallbackOfflineMode,
		},
		Cache: Cache{
			TTLDays:    defaultCacheTTLDays,
			MaxEntries: defaultCacheMaxEntries,
		},
		Journal: Journal{
			RetentionDays: defaultJournalRetention,
			MaxEntries:    defaultJournalMaxEntries,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetention,
		},
		Watch: Watch{
			SettleSeconds: defaultWatchSettleSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
