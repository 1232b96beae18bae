package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"declutter/internal/fileutil"
	"declutter/internal/logging"
)

const (
	// DefaultRetention is the age after which records are pruned.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultMaxEntries caps the number of records kept.
	DefaultMaxEntries = 1000
)

// Status is the lifecycle state of a move record.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusUndone    Status = "undone"
	StatusFailed    Status = "failed"
)

// ReasonConflict marks a move skipped because the destination existed.
const ReasonConflict = "conflict"

// Record is one journal entry.
type Record struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Timestamp   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
}

// FileError pairs a path with the reason an operation on it did not happen.
type FileError struct {
	Path   string
	Reason string
}

func (e FileError) String() string {
	return e.Path + ": " + e.Reason
}

// Options configures a Journal.
type Options struct {
	Retention  time.Duration
	MaxEntries int
	Logger     *slog.Logger
	// Now overrides the clock.
	Now func() time.Time
}

// Journal is safe for concurrent use, although the engine only touches it
// from one goroutine.
type Journal struct {
	path       string
	retention  time.Duration
	maxEntries int
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	records []Record
}

// Open loads and prunes the journal at path.
func Open(path string, opts Options) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	j := &Journal{
		path:       path,
		retention:  opts.Retention,
		maxEntries: opts.MaxEntries,
		logger:     logging.NewComponentLogger(opts.Logger, "journal"),
		now:        opts.Now,
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	if removed := j.pruneLocked(); removed > 0 {
		j.logger.Debug("pruned journal records on load", logging.Int("removed", removed))
	}
	return j, nil
}

// Path returns the backing file.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read journal: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		backup := j.path + ".corrupt"
		renameErr := os.Rename(j.path, backup)
		attrs := []logging.Attr{
			logging.Path(j.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect "+backup+" to recover older moves by hand"),
			logging.String(logging.FieldImpact, "earlier moves can no longer be undone automatically"),
		}
		if renameErr != nil {
			attrs = append(attrs, logging.String("backup_error", renameErr.Error()))
		}
		logging.WarnWithContext(j.logger, "undo journal is corrupt; starting empty", "journal_load_failed", attrs...)
		j.records = nil
		return nil
	}
	j.records = records[:0]
	for _, rec := range records {
		if strings.TrimSpace(rec.Source) == "" || strings.TrimSpace(rec.Destination) == "" {
			continue
		}
		switch rec.Status {
		case StatusCompleted, StatusUndone, StatusFailed:
		default:
			continue
		}
		j.records = append(j.records, rec)
	}
	return nil
}

// pruneLocked drops expired records, then the oldest beyond capacity.
func (j *Journal) pruneLocked() int {
	cutoff := j.now().Add(-j.retention)
	kept := j.records[:0]
	for _, rec := range j.records {
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(j.records) - len(kept)
	if over := len(kept) - j.maxEntries; over > 0 {
		kept = kept[over:]
		removed += over
	}
	j.records = kept
	return removed
}

// Prune applies the retention policy and persists the result when anything
// was removed.
func (j *Journal) Prune() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	removed := j.pruneLocked()
	if removed == 0 {
		return 0, nil
	}
	return removed, j.saveLocked()
}

// Append adds a record and makes it durable before returning. A zero
// Timestamp is set to now.
func (j *Journal) Append(rec Record) error {
	if rec.Status == "" {
		return errors.New("journal append: status is required")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = j.now()
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Second)
	previous := j.records
	next := append(append(make([]Record, 0, len(previous)+1), previous...), rec)
	if over := len(next) - j.maxEntries; over > 0 {
		next = next[over:]
	}
	j.records = next
	if err := j.saveLocked(); err != nil {
		j.records = previous
		return err
	}
	return nil
}

// Records returns a copy of all records in recorded order.
func (j *Journal) Records() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Record, len(j.records))
	copy(out, j.records)
	return out
}

// Candidate is a completed record eligible for undo.
type Candidate struct {
	Index int
	Record
}

// Candidates returns completed records in recorded order. When runID is
// non-empty only records from that run are returned.
func (j *Journal) Candidates(runID string) []Candidate {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.candidatesLocked(runID)
}

func (j *Journal) candidatesLocked(runID string) []Candidate {
	var out []Candidate
	for i, rec := range j.records {
		if rec.Status != StatusCompleted {
			continue
		}
		if runID != "" && rec.RunID != runID {
			continue
		}
		out = append(out, Candidate{Index: i, Record: rec})
	}
	return out
}

// LastRunID returns the run ID of the most recent completed record.
func (j *Journal) LastRunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.records) - 1; i >= 0; i-- {
		if j.records[i].Status == StatusCompleted && j.records[i].RunID != "" {
			return j.records[i].RunID
		}
	}
	return ""
}

func (j *Journal) markUndone(index int, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index < 0 || index >= len(j.records) || j.records[index] != rec {
		return fmt.Errorf("journal record for %s changed during undo", rec.Source)
	}
	j.records[index].Status = StatusUndone
	if err := j.saveLocked(); err != nil {
		j.records[index].Status = StatusCompleted
		return err
	}
	return nil
}

func (j *Journal) saveLocked() error {
	records := j.records
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := fileutil.WriteFileAtomic(j.path, data, 0o644); err != nil {
		return fmt.Errorf("persist journal: %w", err)
	}
	return nil
}
