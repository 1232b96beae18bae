package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"declutter/internal/services"
	"declutter/internal/testsupport"
)

func TestScanFlatSkipsHiddenDirsAndSymlinks(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteText(t, filepath.Join(root, "b.pdf"), "pdf")
	testsupport.WriteText(t, filepath.Join(root, "a.jpg"), "jpeg")
	testsupport.WriteText(t, filepath.Join(root, ".hidden"), "x")
	testsupport.WriteText(t, filepath.Join(root, "nested", "c.txt"), "nested")
	if err := os.Symlink(filepath.Join(root, "a.jpg"), filepath.Join(root, "link.jpg")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	files, err := Scan(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(files), files)
	}
	if files[0].Name() != "a.jpg" || files[1].Name() != "b.pdf" {
		t.Fatalf("unexpected order: %s, %s", files[0].Name(), files[1].Name())
	}
	if files[0].Size != 4 {
		t.Fatalf("expected size 4, got %d", files[0].Size)
	}
}

func TestScanRecursive(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteText(t, filepath.Join(root, "top.txt"), "x")
	testsupport.WriteText(t, filepath.Join(root, "sub", "deep", "inner.go"), "package x")
	testsupport.WriteText(t, filepath.Join(root, ".git", "config"), "x")
	testsupport.WriteText(t, filepath.Join(root, "Images", "old.png"), "x")

	files, err := Scan(context.Background(), root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{
		filepath.Join(root, "Images", "old.png"),
		filepath.Join(root, "sub", "deep", "inner.go"),
		filepath.Join(root, "top.txt"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d: %+v", len(want), len(files), files)
	}
	for i, path := range want {
		if files[i].Path != path {
			t.Fatalf("file %d = %s, want %s", i, files[i].Path, path)
		}
	}
}

func TestScanRejectsMissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestScanRejectsFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	testsupport.WriteText(t, file, "x")
	_, err := Scan(context.Background(), file, Options{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestScanHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteText(t, filepath.Join(root, "a.txt"), "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, root, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIdentityEqual(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	base := FileIdentity{Path: "/x/a.txt", Size: 10, ModTime: now}

	tests := []struct {
		name  string
		other FileIdentity
		want  bool
	}{
		{"same", base, true},
		{"sub-second drift", FileIdentity{Path: "/x/a.txt", Size: 10, ModTime: now.Add(300 * time.Millisecond)}, true},
		{"size changed", FileIdentity{Path: "/x/a.txt", Size: 11, ModTime: now}, false},
		{"mtime changed", FileIdentity{Path: "/x/a.txt", Size: 10, ModTime: now.Add(time.Second)}, false},
		{"path changed", FileIdentity{Path: "/x/b.txt", Size: 10, ModTime: now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Fatalf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":       "jpg",
		"archive.tar.gz":  "gz",
		"README":          "",
		".bashrc":         "",
		"trailing.":       "",
		"/a/b/report.pdf": "pdf",
	}
	for input, want := range tests {
		if got := Extension(input); got != want {
			t.Errorf("Extension(%q) = %q, want %q", input, got, want)
		}
	}
}
