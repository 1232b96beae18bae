package testsupport

import (
	"path/filepath"
	"testing"

	"declutter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// State files live under <tmp>/data and the organize target is <tmp>/target.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	dataDir := filepath.Join(base, "data")
	cfgVal.Paths.DataDir = dataDir
	cfgVal.Paths.LogDir = filepath.Join(dataDir, "logs")
	cfgVal.Paths.CacheFile = filepath.Join(dataDir, "cache.json")
	cfgVal.Paths.JournalFile = filepath.Join(dataDir, "undo_log.json")
	cfgVal.Paths.HistoryDB = filepath.Join(dataDir, "history.db")
	cfgVal.Paths.LockFile = filepath.Join(dataDir, "declutter.lock")
	cfgVal.Organize.TargetDir = filepath.Join(base, "target")
	cfgVal.LLM.APIKey = "test"
	cfgVal.LLM.RetryBaseMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	MkdirAll(t, builder.cfg.Organize.TargetDir)
	return builder.cfg
}

// WithAPIKey sets the categorization service key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithBaseURL points the categorization client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithOffline toggles offline categorization.
func WithOffline(offline bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Organize.Offline = offline
	}
}
