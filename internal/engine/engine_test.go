package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"declutter/internal/categorize"
	"declutter/internal/config"
	"declutter/internal/journal"
	"declutter/internal/plan"
	"declutter/internal/services"
	"declutter/internal/services/llm"
	"declutter/internal/testsupport"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   int
	answers map[string]categorize.Categorization
}

func (f *fakeClient) Categorize(_ context.Context, req llm.Request) (categorize.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	c, ok := f.answers[req.Name]
	if !ok {
		return categorize.Result{}, services.Wrap(services.ErrTransient, "llm", "categorize", "no answer", nil)
	}
	return categorize.Success(c, categorize.SourceService), nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	cfg    *config.Config
	deps   *Deps
	client *fakeClient
	events chan Event
	root   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	deps, err := OpenDeps(context.Background(), cfg, nil, false)
	if err != nil {
		t.Fatalf("OpenDeps: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })
	client := &fakeClient{answers: map[string]categorize.Categorization{
		"a.png": {Category: "Images"},
		"b.txt": {Category: "Documents", Subfolder: "Notes"},
	}}
	deps.Client = client
	events := make(chan Event, 256)
	deps.Events = events
	return &harness{cfg: cfg, deps: deps, client: client, events: events, root: cfg.Organize.TargetDir}
}

func (h *harness) engine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	run, _, err := FromConfig(h.cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if mutate != nil {
		mutate(&run)
	}
	e, err := New(run, *h.deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	testsupport.WriteText(t, filepath.Join(h.root, "a.png"), "png")
	testsupport.WriteText(t, filepath.Join(h.root, "b.txt"), "notes")
}

func (h *harness) drain() []EventType {
	var types []EventType
	for {
		select {
		case ev := <-h.events:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func accept(*plan.Plan) (bool, error) { return true, nil }

func TestOrganizeAndUndoRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	e := h.engine(t, nil)
	ctx := context.Background()

	result, err := e.Organize(ctx, accept)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if result.Summary.Moved != 2 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	testsupport.AssertExists(t, filepath.Join(h.root, "Images", "a.png"))
	testsupport.AssertExists(t, filepath.Join(h.root, "Documents", "Notes", "b.txt"))

	types := h.drain()
	for _, want := range []EventType{EventScanComplete, EventCategorizationProgress, EventPlanReady, EventMoveProgress, EventDone} {
		if !containsEvent(types, want) {
			t.Fatalf("missing %s event in %v", want, types)
		}
	}
	if types[len(types)-1] != EventDone {
		t.Fatalf("expected done last, got %v", types)
	}

	runs, err := h.deps.History.List(ctx, 0)
	if err != nil || len(runs) != 1 || runs[0].Moved != 2 || runs[0].RunID != result.Plan.RunID {
		t.Fatalf("unexpected history %+v, %v", runs, err)
	}

	preview, err := e.UndoPreview(ctx)
	if err != nil || preview.Restored != 2 {
		t.Fatalf("UndoPreview = %+v, %v", preview, err)
	}

	var confirmed bool
	summary, err := e.Undo(ctx, func(p journal.UndoSummary) (bool, error) {
		confirmed = p.Restored == 2
		return true, nil
	})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !confirmed || summary.Restored != 2 {
		t.Fatalf("unexpected undo summary %+v (confirmed=%v)", summary, confirmed)
	}
	testsupport.AssertExists(t, filepath.Join(h.root, "a.png"))
	testsupport.AssertExists(t, filepath.Join(h.root, "b.txt"))
	testsupport.AssertMissing(t, filepath.Join(h.root, "Documents"))
	if !containsEvent(h.drain(), EventUndoProgress) {
		t.Fatal("missing undo_progress event")
	}

	again, err := e.Undo(ctx, nil)
	if err != nil || again.Restored != 0 {
		t.Fatalf("second undo = %+v, %v", again, err)
	}
}

func TestOrganizeDeclinedChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	e := h.engine(t, nil)

	_, err := e.Organize(context.Background(), func(*plan.Plan) (bool, error) { return false, nil })
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	testsupport.AssertExists(t, filepath.Join(h.root, "a.png"))
	testsupport.AssertMissing(t, filepath.Join(h.root, "Images"))
	if len(h.deps.Journal.Records()) != 0 {
		t.Fatal("declined plan wrote to the journal")
	}
}

func TestOrganizeDryRun(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	e := h.engine(t, func(c *Config) { c.DryRun = true })

	result, err := e.Organize(context.Background(), func(*plan.Plan) (bool, error) {
		t.Fatal("dry run must not ask for confirmation")
		return false, nil
	})
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if !result.Summary.DryRun || result.Summary.Moved != 2 {
		t.Fatalf("unexpected dry-run summary %+v", result.Summary)
	}
	testsupport.AssertExists(t, filepath.Join(h.root, "a.png"))
	testsupport.AssertMissing(t, h.cfg.Paths.JournalFile)
	// Categorizations are still cached.
	testsupport.AssertExists(t, h.cfg.Paths.CacheFile)
}

func TestOrganizeOfflineNeverCallsServiceOrWritesCache(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	e := h.engine(t, func(c *Config) { c.Offline = true })

	result, err := e.Organize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if h.client.callCount() != 0 {
		t.Fatalf("offline run called the service %d times", h.client.callCount())
	}
	if result.Summary.Moved != 2 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	testsupport.AssertExists(t, filepath.Join(h.root, "Images", "a.png"))
	testsupport.AssertExists(t, filepath.Join(h.root, "Documents", "b.txt"))
	testsupport.AssertMissing(t, h.cfg.Paths.CacheFile)
}

func TestSecondRunUsesCache(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteText(t, filepath.Join(h.root, "a.png"), "png")
	e := h.engine(t, func(c *Config) { c.DryRun = true })

	if _, err := e.Plan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Plan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.client.callCount() != 1 {
		t.Fatalf("expected one service call across two plans, got %d", h.client.callCount())
	}
}

func TestServiceFailureDegradesToExtension(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteText(t, filepath.Join(h.root, "song.mp3"), "x")
	testsupport.WriteText(t, filepath.Join(h.root, "mystery.qqq"), "x")
	e := h.engine(t, nil)

	p, err := e.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	stats := p.Stats()
	if stats.Degraded != 2 {
		t.Fatalf("expected 2 degraded entries, got %+v", stats)
	}
	folders := map[string]bool{}
	for _, f := range p.Folders() {
		folders[f.Folder] = true
	}
	if !folders["Music"] || !folders["Misc"] {
		t.Fatalf("unexpected folders %+v", p.Folders())
	}
}

func TestExecuteFailsFastWhenLocked(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	e := h.engine(t, nil)

	held := flock.New(h.cfg.Paths.LockFile)
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer held.Unlock()

	if _, err := e.Organize(context.Background(), accept); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	testsupport.AssertExists(t, filepath.Join(h.root, "a.png"))
}

func TestPlanRejectsMissingRoot(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, func(c *Config) { c.Root = filepath.Join(h.root, "missing") })
	_, err := e.Plan(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if h.client.callCount() != 0 {
		t.Fatal("service called for a bad root")
	}
}

func TestNewRequiresClientOnline(t *testing.T) {
	h := newHarness(t)
	deps := *h.deps
	deps.Client = nil
	run, _, err := FromConfig(h.cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(run, deps); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	run.Offline = true
	if _, err := New(run, deps); err != nil {
		t.Fatalf("offline engine without client: %v", err)
	}
}

func TestFromConfigFallsBackOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIKey(""))
	run, fellBack, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if !fellBack || !run.Offline {
		t.Fatalf("expected offline fallback, got offline=%v fellBack=%v", run.Offline, fellBack)
	}

	cfg.Organize.FallbackOffline = false
	if _, _, err := FromConfig(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	cfg.Organize.Offline = true
	if run, fellBack, err := FromConfig(cfg); err != nil || fellBack || !run.Offline {
		t.Fatalf("explicit offline = %+v, %v, %v", run, fellBack, err)
	}
}

func TestConfigIsCopied(t *testing.T) {
	h := newHarness(t)
	cats := []string{"Images", "Misc"}
	run, _, _ := FromConfig(h.cfg)
	run.Categories = cats
	e, err := New(run, *h.deps)
	if err != nil {
		t.Fatal(err)
	}
	cats[0] = "Changed"
	if got := e.Config().Categories[0]; got != "Images" {
		t.Fatalf("engine config mutated through caller slice: %q", got)
	}
}

func TestUndoRunFilter(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteText(t, filepath.Join(h.root, "a.png"), "png")
	first, err := h.engine(t, nil).Organize(context.Background(), accept)
	if err != nil {
		t.Fatal(err)
	}
	testsupport.WriteText(t, filepath.Join(h.root, "b.txt"), "notes")
	if _, err := h.engine(t, nil).Organize(context.Background(), accept); err != nil {
		t.Fatal(err)
	}

	e := h.engine(t, func(c *Config) { c.UndoRunID = first.Plan.RunID })
	summary, err := e.Undo(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Restored != 1 {
		t.Fatalf("expected one restored file, got %+v", summary)
	}
	testsupport.AssertExists(t, filepath.Join(h.root, "a.png"))
	testsupport.AssertExists(t, filepath.Join(h.root, "Documents", "Notes", "b.txt"))
}

func containsEvent(types []EventType, want EventType) bool {
	for _, typ := range types {
		if typ == want {
			return true
		}
	}
	return false
}

func TestEventTypesAreSnakeCase(t *testing.T) {
	for _, typ := range []EventType{EventScanComplete, EventCategorizationProgress, EventPlanReady, EventMoveProgress, EventUndoProgress, EventDone} {
		if strings.ToLower(string(typ)) != string(typ) {
			t.Fatalf("unexpected event type %q", typ)
		}
	}
}
