package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"declutter/internal/config"
	"declutter/internal/testsupport"
)

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckStateFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "cache.json")
	testsupport.WriteText(t, existing, "{}")

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing file", existing, true},
		{"missing file in writable dir", filepath.Join(dir, "undo_log.json"), true},
		{"missing parent", filepath.Join(dir, "nope", "undo_log.json"), false},
		{"directory", dir, false},
		{"unset", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckStateFile("state", tt.path); got.Passed != tt.want {
				t.Fatalf("CheckStateFile(%q) = %+v, want passed=%v", tt.path, got, tt.want)
			}
		})
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	cfg := config.LLMConfig{APIKey: "good-key", BaseURL: srv.URL, Model: "test-model"}

	result := CheckLLM(context.Background(), "LLM", cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "test-model") {
		t.Fatalf("expected model in detail, got %q", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := healthServer(t, http.StatusUnauthorized)
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "bad", BaseURL: srv.URL})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckRunLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "declutter.lock")
	if got := CheckRunLock(path); !got.Passed {
		t.Fatalf("expected idle lock, got %+v", got)
	}

	held := flock.New(path)
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer held.Unlock()

	if got := CheckRunLock(path); got.Passed {
		t.Fatalf("expected held lock to fail, got %+v", got)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_OfflineSkipsService(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOffline(true))

	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	last := results[len(results)-1]
	if last.Name != "Categorization service" || !strings.Contains(last.Detail, "offline") {
		t.Fatalf("expected skipped service check, got %+v", last)
	}
}

func TestRunAll_ChecksServiceWhenOnline(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL))

	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}
