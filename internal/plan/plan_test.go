package plan

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"declutter/internal/categorize"
	"declutter/internal/scanner"
	"declutter/internal/testsupport"
)

func ident(root, rel string) scanner.FileIdentity {
	return scanner.FileIdentity{Path: filepath.Join(root, rel), Size: 10, ModTime: time.Unix(1_700_000_000, 0)}
}

func success(category, sub string) categorize.Result {
	return categorize.Success(categorize.Categorization{Category: category, Subfolder: sub}, categorize.SourceService)
}

func TestBuildDestinations(t *testing.T) {
	root := t.TempDir()
	files := []scanner.FileIdentity{ident(root, "a.png"), ident(root, "b.txt")}
	results := []categorize.Result{success("Images", ""), success("Documents", "notes")}

	p, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		filepath.Join(root, "Images", "a.png"),
		filepath.Join(root, "Documents", "Notes", "b.txt"),
	}
	for i, entry := range p.Entries {
		if entry.Destination != want[i] {
			t.Fatalf("entry %d destination %q, want %q", i, entry.Destination, want[i])
		}
		if entry.InPlace || entry.Conflict || entry.Renamed {
			t.Fatalf("unexpected flags on entry %d: %+v", i, entry)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	root := t.TempDir()
	files := []scanner.FileIdentity{ident(root, "x/report.pdf"), ident(root, "y/report.pdf"), ident(root, "z.mp3")}
	results := []categorize.Result{success("Documents", ""), success("Documents", ""), success("Music", "")}

	first, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans differ:\n%+v\n%+v", first, second)
	}
}

func TestBuildSuffixesCollisionsInScanOrder(t *testing.T) {
	root := t.TempDir()
	files := []scanner.FileIdentity{
		ident(root, "a/report.pdf"),
		ident(root, "b/report.pdf"),
		ident(root, "c/report.pdf"),
	}
	results := []categorize.Result{success("Documents", ""), success("Documents", ""), success("Documents", "")}

	p, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"report.pdf", "report (1).pdf", "report (2).pdf"}
	for i, entry := range p.Entries {
		if filepath.Base(entry.Destination) != want[i] {
			t.Fatalf("entry %d = %s, want %s", i, filepath.Base(entry.Destination), want[i])
		}
		if entry.Renamed != (i > 0) {
			t.Fatalf("entry %d renamed = %v", i, entry.Renamed)
		}
	}
}

func TestBuildMarksInPlaceAndConflicts(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteText(t, filepath.Join(root, "Images", "old.png"), "x")
	testsupport.WriteText(t, filepath.Join(root, "Images", "taken.png"), "x")

	files := []scanner.FileIdentity{ident(root, "Images/old.png"), ident(root, "taken.png")}
	results := []categorize.Result{success("Images", ""), success("Images", "")}

	p, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Entries[0].InPlace {
		t.Fatalf("expected in-place entry, got %+v", p.Entries[0])
	}
	// Images/taken.png is not a scanned source here, so it is an on-disk conflict.
	if !p.Entries[1].Conflict || p.Entries[1].Renamed {
		t.Fatalf("expected conflict without rename, got %+v", p.Entries[1])
	}
	stats := p.Stats()
	if stats.Moves != 1 || stats.InPlace != 1 || stats.Conflicts != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestBuildAvoidsLandingOnPendingSource(t *testing.T) {
	root := t.TempDir()
	// Images/a.png sorts before a.png and will itself move into a sub-folder.
	files := []scanner.FileIdentity{ident(root, "Images/a.png"), ident(root, "a.png")}
	results := []categorize.Result{success("Images", "Screenshots"), success("Images", "")}

	p, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(p.Entries[1].Destination); got != "a (1).png" {
		t.Fatalf("expected suffixed destination, got %s", got)
	}
}

func TestBuildSanitizesFolders(t *testing.T) {
	root := t.TempDir()
	files := []scanner.FileIdentity{ident(root, "a.txt"), ident(root, "b.txt"), ident(root, "c.txt")}
	results := []categorize.Result{
		success("../Documents", ""),
		success("Documents", ".."),
		categorize.Failed("no answer", nil),
	}
	p, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "-Documents", "a.txt"),
		filepath.Join(root, "Documents", "b.txt"),
		filepath.Join(root, "Misc", "c.txt"),
	}
	for i, entry := range p.Entries {
		if entry.Destination != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, entry.Destination, want[i])
		}
		rel, err := filepath.Rel(root, entry.Destination)
		if err != nil || strings.HasPrefix(rel, "..") {
			t.Fatalf("destination escapes root: %q", entry.Destination)
		}
	}
	if p.Entries[2].Result.Kind != categorize.KindDegraded {
		t.Fatalf("failed result should be degraded to Misc, got %v", p.Entries[2].Result.Kind)
	}
}

func TestBuildRejectsMisalignedInput(t *testing.T) {
	root := t.TempDir()
	if _, err := Build(root, []scanner.FileIdentity{ident(root, "a")}, nil, Options{}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	r := success("Misc", "").WithPath(filepath.Join(root, "other"))
	if _, err := Build(root, []scanner.FileIdentity{ident(root, "a")}, []categorize.Result{r}, Options{}); err == nil {
		t.Fatal("expected path mismatch error")
	}
}

func TestFolders(t *testing.T) {
	root := t.TempDir()
	files := []scanner.FileIdentity{ident(root, "a.png"), ident(root, "b.png"), ident(root, "c.pdf")}
	results := []categorize.Result{success("Images", ""), success("Images", ""), success("Documents", "")}
	p, err := Build(root, files, results, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []FolderCount{{Folder: "Documents", Files: 1}, {Folder: "Images", Files: 2}}
	if got := p.Folders(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Folders = %+v, want %+v", got, want)
	}
}
