package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"declutter/internal/config"
)

func TestLoadDefaultConfigDerivesPathsFromDataDir(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("DECLUTTER_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	dataDir := filepath.Join(tempHome, ".local", "share", "declutter")
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, dataDir)
	}
	if cfg.Paths.CacheFile != filepath.Join(dataDir, "cache.json") {
		t.Fatalf("unexpected cache file: %q", cfg.Paths.CacheFile)
	}
	if cfg.Paths.JournalFile != filepath.Join(dataDir, "undo_log.json") {
		t.Fatalf("unexpected journal file: %q", cfg.Paths.JournalFile)
	}
	if cfg.Paths.LogDir != filepath.Join(dataDir, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Organize.MaxConcurrent != 5 {
		t.Fatalf("unexpected max concurrent: %d", cfg.Organize.MaxConcurrent)
	}
	if cfg.Cache.TTLDays != 7 || cfg.Cache.MaxEntries != 1000 {
		t.Fatalf("unexpected cache policy: %+v", cfg.Cache)
	}
	if cfg.Journal.RetentionDays != 30 || cfg.Journal.MaxEntries != 1000 {
		t.Fatalf("unexpected journal policy: %+v", cfg.Journal)
	}
	if !reflect.DeepEqual(cfg.Organize.Categories, config.DefaultCategories) {
		t.Fatalf("unexpected categories: %v", cfg.Organize.Categories)
	}
	if !cfg.Organize.FallbackOffline {
		t.Fatal("expected fallback_offline enabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "declutter.toml")
	t.Setenv("DECLUTTER_API_KEY", "")

	type payload struct {
		Paths struct {
			DataDir   string `toml:"data_dir"`
			CacheFile string `toml:"cache_file"`
		} `toml:"paths"`
		LLM struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"llm"`
		Organize struct {
			MaxConcurrent int      `toml:"max_concurrent"`
			Categories    []string `toml:"categories"`
		} `toml:"organize"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "state")
	custom.Paths.CacheFile = filepath.Join(tempDir, "elsewhere", "responses.json")
	custom.LLM.APIKey = "abc123"
	custom.LLM.Model = "demo/model"
	custom.Organize.MaxConcurrent = 2
	custom.Organize.Categories = []string{" Photos ", "Work", "photos", "misc"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.LLM.APIKey != "abc123" || cfg.LLM.Model != "demo/model" {
		t.Fatalf("unexpected llm settings: %+v", cfg.LLM)
	}
	if cfg.Paths.CacheFile != custom.Paths.CacheFile {
		t.Fatalf("expected explicit cache file, got %q", cfg.Paths.CacheFile)
	}
	if cfg.Paths.JournalFile != filepath.Join(tempDir, "state", "undo_log.json") {
		t.Fatalf("expected journal derived from data dir, got %q", cfg.Paths.JournalFile)
	}
	if cfg.Organize.MaxConcurrent != 2 {
		t.Fatalf("expected max concurrent 2, got %d", cfg.Organize.MaxConcurrent)
	}
	want := []string{"Photos", "Work", "Misc"}
	if !reflect.DeepEqual(cfg.Organize.Categories, want) {
		t.Fatalf("categories = %v, want %v", cfg.Organize.Categories, want)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "declutter.toml")
	if err := os.WriteFile(configPath, []byte("[organize]\nmax_concurrency = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvVarOverridesConfigFileForAPIKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "declutter.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "openrouter-key")
	t.Setenv("DECLUTTER_API_KEY", "")
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Errorf("OPENROUTER_API_KEY should only fill an empty key, got %q", cfg.LLM.APIKey)
	}

	t.Setenv("DECLUTTER_API_KEY", "env-key")
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected DECLUTTER_API_KEY to override, got %q", cfg.LLM.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_api_key_here") {
		t.Fatalf("sample config missing placeholder API key: %s", contents)
	}

	t.Setenv("DECLUTTER_API_KEY", "")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if !strings.Contains(cfg.Paths.DataDir, "declutter") {
		t.Fatalf("expected data dir to contain declutter, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.CacheFile = "/tmp/a.json"
	cfg.Paths.JournalFile = "/tmp/b.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	bad := cfg
	bad.Paths.JournalFile = bad.Paths.CacheFile
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error when cache and journal share a path")
	}

	bad = cfg
	bad.LLM.BaseURL = "not a url"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for relative base url")
	}

	bad = cfg
	bad.Organize.MaxConcurrent = 500
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for excessive concurrency")
	}

	bad = cfg
	bad.Organize.Categories = []string{"a/b", "Misc"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for category containing a separator")
	}

	bad = cfg
	bad.Organize.Offline = true
	bad.Organize.DeepInspection = true
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for deep inspection in offline mode")
	}

	bad = cfg
	bad.Logging.Level = "verbose"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestNormalizeCategoriesAppendsMisc(t *testing.T) {
	got := config.NormalizeCategories([]string{"Misc", "Docs", "", "docs"})
	want := []string{"Docs", "Misc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeCategories = %v, want %v", got, want)
	}
	if got := config.NormalizeCategories(nil); !reflect.DeepEqual(got, config.DefaultCategories) {
		t.Fatalf("expected defaults for empty input, got %v", got)
	}
}
