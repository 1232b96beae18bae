package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"declutter/internal/testsupport"
)

func openJournal(t *testing.T, path string, now time.Time) *Journal {
	t.Helper()
	j, err := Open(path, Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return j
}

func TestAppendIsDurableJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undo_log.json")
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	j := openJournal(t, path, now)

	if err := j.Append(Record{Source: "/a/x.png", Destination: "/a/Images/x.png", Status: StatusCompleted, RunID: "run-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(Record{Source: "/a/y.png", Destination: "/a/Images/y.png", Status: StatusFailed, Reason: ReasonConflict}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var raw []map[string]any
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("journal is not a JSON array: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 records on disk, got %d", len(raw))
	}
	if raw[0]["status"] != "completed" || raw[1]["status"] != "failed" || raw[1]["reason"] != "conflict" {
		t.Fatalf("unexpected records %v", raw)
	}
	if raw[0]["timestamp"] != "2025-06-01T10:00:00Z" {
		t.Fatalf("unexpected timestamp %v", raw[0]["timestamp"])
	}

	reopened := openJournal(t, path, now)
	if len(reopened.Records()) != 2 {
		t.Fatalf("expected 2 records after reopen, got %d", len(reopened.Records()))
	}
	cands := reopened.Candidates("")
	if len(cands) != 1 || cands[0].Source != "/a/x.png" {
		t.Fatalf("failed records must not be candidates: %+v", cands)
	}
}

func TestOpenPrunesByAgeAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undo_log.json")
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	records := []Record{{
		Source: "/old", Destination: "/x/old", Status: StatusCompleted,
		Timestamp: now.Add(-31 * 24 * time.Hour),
	}}
	for i := range 1005 {
		records = append(records, Record{
			Source:      fmt.Sprintf("/s/%04d", i),
			Destination: fmt.Sprintf("/d/%04d", i),
			Status:      StatusCompleted,
			Timestamp:   now.Add(-time.Duration(1005-i) * time.Minute),
		})
	}
	data, _ := json.Marshal(records)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	j := openJournal(t, path, now)
	got := j.Records()
	if len(got) != DefaultMaxEntries {
		t.Fatalf("expected %d records, got %d", DefaultMaxEntries, len(got))
	}
	if got[0].Source != "/s/0005" {
		t.Fatalf("expected oldest entries evicted first, first is %s", got[0].Source)
	}
	for _, rec := range got {
		if rec.Source == "/old" {
			t.Fatal("expired record survived pruning")
		}
	}
}

func TestCorruptJournalStartsEmptyWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undo_log.json")
	if err := os.WriteFile(path, []byte(`[{"source": `), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	j, err := Open(path, Options{Logger: logger})
	if err != nil {
		t.Fatalf("Open must not fail on corruption: %v", err)
	}
	if len(j.Records()) != 0 {
		t.Fatalf("expected empty journal, got %d", len(j.Records()))
	}
	if !strings.Contains(buf.String(), "journal_load_failed") {
		t.Fatalf("expected warning, got %s", buf.String())
	}
	testsupport.AssertExists(t, path+".corrupt")

	if err := j.Append(Record{Source: "/a", Destination: "/b", Status: StatusCompleted}); err != nil {
		t.Fatalf("Append after corruption: %v", err)
	}
}

func TestAppendRequiresStatus(t *testing.T) {
	j := openJournal(t, filepath.Join(t.TempDir(), "j.json"), time.Now())
	if err := j.Append(Record{Source: "/a", Destination: "/b"}); err == nil {
		t.Fatal("expected error for missing status")
	}
}

// organize moves src to dst on disk and journals it, mimicking the executor.
func organize(t *testing.T, j *Journal, src, dst, runID string) {
	t.Helper()
	testsupport.MkdirAll(t, filepath.Dir(dst))
	if err := os.Rename(src, dst); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := j.Append(Record{Source: src, Destination: dst, Status: StatusCompleted, RunID: runID}); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestUndoRoundTripRemovesEmptyDirs(t *testing.T) {
	root := t.TempDir()
	j := openJournal(t, filepath.Join(t.TempDir(), "undo_log.json"), time.Now())

	a := filepath.Join(root, "a.png")
	b := filepath.Join(root, "b.txt")
	testsupport.WriteText(t, a, "png")
	testsupport.WriteText(t, b, "notes")
	testsupport.WriteText(t, filepath.Join(root, "Images", "keep.png"), "other")
	organize(t, j, a, filepath.Join(root, "Images", "a.png"), "r1")
	organize(t, j, b, filepath.Join(root, "Documents", "Notes", "b.txt"), "r1")

	summary, err := j.Undo(context.Background(), UndoOptions{})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if summary.Restored != 2 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	testsupport.AssertExists(t, a)
	testsupport.AssertExists(t, b)
	testsupport.AssertMissing(t, filepath.Join(root, "Documents", "Notes"))
	testsupport.AssertMissing(t, filepath.Join(root, "Documents"))
	// Images still holds another file.
	testsupport.AssertExists(t, filepath.Join(root, "Images", "keep.png"))
	testsupport.AssertExists(t, root)

	for _, rec := range j.Records() {
		if rec.Status != StatusUndone {
			t.Fatalf("expected undone status, got %+v", rec)
		}
	}

	again, err := j.Undo(context.Background(), UndoOptions{})
	if err != nil {
		t.Fatalf("second Undo: %v", err)
	}
	if again.Restored != 0 {
		t.Fatalf("second undo restored %d files", again.Restored)
	}
}

func TestUndoSkipsWhenSourceOccupied(t *testing.T) {
	root := t.TempDir()
	j := openJournal(t, filepath.Join(t.TempDir(), "undo_log.json"), time.Now())

	a := filepath.Join(root, "a.png")
	testsupport.WriteText(t, a, "original")
	dst := filepath.Join(root, "Images", "a.png")
	organize(t, j, a, dst, "r1")
	testsupport.WriteText(t, a, "newcomer")

	summary, err := j.Undo(context.Background(), UndoOptions{})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if summary.Skipped != 1 || summary.Restored != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := testsupport.ReadText(t, a); got != "newcomer" {
		t.Fatalf("source was overwritten: %q", got)
	}
	if j.Records()[0].Status != StatusCompleted {
		t.Fatalf("skipped record must stay completed, got %s", j.Records()[0].Status)
	}
}

func TestUndoSkipsMissingDestination(t *testing.T) {
	root := t.TempDir()
	j := openJournal(t, filepath.Join(t.TempDir(), "undo_log.json"), time.Now())
	a := filepath.Join(root, "a.png")
	testsupport.WriteText(t, a, "x")
	dst := filepath.Join(root, "Images", "a.png")
	organize(t, j, a, dst, "r1")
	if err := os.Remove(dst); err != nil {
		t.Fatal(err)
	}

	summary, err := j.Undo(context.Background(), UndoOptions{})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if summary.Skipped != 1 || summary.Outcomes[0].Reason == "" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestUndoDryRunChangesNothing(t *testing.T) {
	root := t.TempDir()
	journalPath := filepath.Join(t.TempDir(), "undo_log.json")
	j := openJournal(t, journalPath, time.Now())
	a := filepath.Join(root, "a.png")
	testsupport.WriteText(t, a, "x")
	dst := filepath.Join(root, "Images", "a.png")
	organize(t, j, a, dst, "r1")
	before := testsupport.ReadText(t, journalPath)

	summary, err := j.Undo(context.Background(), UndoOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !summary.DryRun || summary.Restored != 1 {
		t.Fatalf("unexpected dry-run summary %+v", summary)
	}
	testsupport.AssertExists(t, dst)
	testsupport.AssertMissing(t, a)
	if after := testsupport.ReadText(t, journalPath); after != before {
		t.Fatal("dry run modified the journal")
	}
}

func TestUndoDryRunMatchesRealUndoForSharedSource(t *testing.T) {
	root := t.TempDir()
	j := openJournal(t, filepath.Join(t.TempDir(), "undo_log.json"), time.Now())
	a := filepath.Join(root, "a.png")
	testsupport.WriteText(t, a, "first")
	organize(t, j, a, filepath.Join(root, "Images", "a.png"), "r1")
	testsupport.WriteText(t, a, "second")
	organize(t, j, a, filepath.Join(root, "Images", "a (1).png"), "r2")

	preview, err := j.Undo(context.Background(), UndoOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry-run Undo: %v", err)
	}
	applied, err := j.Undo(context.Background(), UndoOptions{})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if preview.Restored != 1 || preview.Skipped != 1 {
		t.Fatalf("preview = restored %d skipped %d, want 1 and 1", preview.Restored, preview.Skipped)
	}
	if applied.Restored != preview.Restored || applied.Skipped != preview.Skipped {
		t.Fatalf("real undo restored %d skipped %d, preview promised %d and %d",
			applied.Restored, applied.Skipped, preview.Restored, preview.Skipped)
	}
	if got := testsupport.ReadText(t, a); got != "first" {
		t.Fatalf("restored content = %q, want first", got)
	}
	if preview.Outcomes[1].Reason != "source path is occupied" {
		t.Fatalf("unexpected preview reason %q", preview.Outcomes[1].Reason)
	}
}

func TestUndoFiltersByRunID(t *testing.T) {
	root := t.TempDir()
	j := openJournal(t, filepath.Join(t.TempDir(), "undo_log.json"), time.Now())
	a := filepath.Join(root, "a.png")
	b := filepath.Join(root, "b.png")
	testsupport.WriteText(t, a, "x")
	testsupport.WriteText(t, b, "y")
	organize(t, j, a, filepath.Join(root, "Images", "a.png"), "r1")
	organize(t, j, b, filepath.Join(root, "Images", "b.png"), "r2")

	if got := j.LastRunID(); got != "r2" {
		t.Fatalf("LastRunID = %q", got)
	}
	summary, err := j.Undo(context.Background(), UndoOptions{RunID: "r2"})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if summary.Restored != 1 {
		t.Fatalf("expected only run r2 restored, got %+v", summary)
	}
	testsupport.AssertExists(t, b)
	testsupport.AssertMissing(t, a)
}

func TestPrunePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undo_log.json")
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	current := now
	j, err := Open(path, Options{Now: func() time.Time { return current }})
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Append(Record{Source: "/a", Destination: "/b", Status: StatusCompleted}); err != nil {
		t.Fatal(err)
	}
	current = now.Add(31 * 24 * time.Hour)
	removed, err := j.Prune()
	if err != nil || removed != 1 {
		t.Fatalf("Prune = %d, %v", removed, err)
	}
	if got := strings.TrimSpace(testsupport.ReadText(t, path)); got != "[]" {
		t.Fatalf("expected empty array on disk, got %q", got)
	}
}

func TestCommonAncestor(t *testing.T) {
	tests := []struct{ src, dst, want string }{
		{"/d/a.png", "/d/Images/a.png", "/d"},
		{"/d/sub/a.png", "/d/Images/a.png", "/d"},
		{"/d/a.png", "/e/Images/a.png", "/"},
	}
	for _, tt := range tests {
		if got := commonAncestor(tt.src, tt.dst); got != tt.want {
			t.Errorf("commonAncestor(%q, %q) = %q, want %q", tt.src, tt.dst, got, tt.want)
		}
	}
}
