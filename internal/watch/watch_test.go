package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, dir string, opts Options) <-chan []string {
	t.Helper()
	w, err := New(dir, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	batches := make(chan []string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, files []string) error {
			batches <- files
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	return batches
}

func TestWatcherBatchesSettledFiles(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir, Options{Settle: 150 * time.Millisecond})

	for _, name := range []string{"b.png", "a.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case files := <-batches:
		want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.png")}
		if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
			t.Fatalf("unexpected batch %v, want %v", files, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for settled batch")
	}

	select {
	case files := <-batches:
		t.Fatalf("unexpected second batch %v", files)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherIgnoresHiddenAndCategoryFolders(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir, Options{Settle: 100 * time.Millisecond, Ignore: []string{"Images"}})

	if err := os.WriteFile(filepath.Join(dir, ".partial"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "Images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Images", "a.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case files := <-batches:
		t.Fatalf("unexpected batch %v", files)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestNewRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(f, Options{}); err == nil {
		t.Fatal("expected error for a file")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, err := New(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(context.Context, []string) error { return nil }) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
