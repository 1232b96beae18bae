package respcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"declutter/internal/categorize"
	"declutter/internal/fileutil"
	"declutter/internal/logging"
	"declutter/internal/scanner"
)

const (
	// DefaultTTL is how long a stored categorization stays valid.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultMaxEntries bounds the number of cached files.
	DefaultMaxEntries = 1000
)

// Entry is one cached categorization together with the file snapshot it was
// computed for.
type Entry struct {
	Path         string `json:"-"`
	Category     string `json:"category"`
	Subfolder    string `json:"subfolder,omitempty"`
	Size         int64  `json:"size"`
	ModifiedTime int64  `json:"modified_time"`
	CachedAt     int64  `json:"cached_at"`
	LastUsed     int64  `json:"last_used"`
}

// Categorization returns the cached answer.
func (e Entry) Categorization() categorize.Categorization {
	return categorize.Categorization{Category: e.Category, Subfolder: e.Subfolder}
}

// Matches reports whether the entry was computed for the given snapshot.
func (e Entry) Matches(id scanner.FileIdentity) bool {
	return e.Size == id.Size && e.ModifiedTime == id.ModTime.Unix()
}

// Options configures a Cache.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Logger     *slog.Logger
	// Now overrides the clock.
	Now func() time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	path     string
	ttl      time.Duration
	capacity int
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries *lru.Cache[string, Entry]
	evicted int
	dirty   bool
}

// Open loads the cache at path. A missing file yields an empty cache; a
// corrupt one is logged and discarded. Open never fails because of the file
// contents; only invalid options produce an error.
func Open(path string, opts Options) (*Cache, error) {
	logger := logging.NewComponentLogger(opts.Logger, "respcache")
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		path:     strings.TrimSpace(path),
		ttl:      opts.TTL,
		capacity: opts.MaxEntries,
		logger:   logger,
		now:      opts.Now,
	}
	entries, err := lru.New[string, Entry](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries

	if c.path == "" {
		return c, nil
	}
	if err := c.load(); err != nil {
		logging.WarnWithContext(logger, "failed to load response cache",
			"cache_load_failed",
			logging.Path(c.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the cache will be rebuilt; delete the file to silence this warning"),
			logging.String(logging.FieldImpact, "previously categorized files will be sent to the service again"),
		)
		c.entries.Purge()
		c.evicted = 0
		c.dirty = true
	}
	return c, nil
}

// Path returns the backing file path.
func (c *Cache) Path() string {
	return c.path
}

// Lookup returns the cached categorization for id when the entry still
// matches the live snapshot and is younger than the TTL. A hit makes the
// entry most recently used. Mismatched and expired entries are dropped.
func (c *Cache) Lookup(id scanner.FileIdentity) (categorize.Categorization, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Peek(id.Path)
	if !ok {
		return categorize.Categorization{}, false
	}
	now := c.now()
	if !entry.Matches(id) || c.expired(entry, now) {
		c.entries.Remove(id.Path)
		c.dirty = true
		return categorize.Categorization{}, false
	}
	entry.LastUsed = now.Unix()
	c.entries.Add(id.Path, entry)
	c.dirty = true
	return entry.Categorization(), true
}

// Store records a categorization for id, evicting least recently used
// entries beyond capacity.
func (c *Cache) Store(id scanner.FileIdentity, cat categorize.Categorization) {
	if strings.TrimSpace(id.Path) == "" || strings.TrimSpace(cat.Category) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().Unix()
	evicted := c.entries.Add(id.Path, Entry{
		Path:         id.Path,
		Category:     cat.Category,
		Subfolder:    cat.Subfolder,
		Size:         id.Size,
		ModifiedTime: id.ModTime.Unix(),
		CachedAt:     now,
		LastUsed:     now,
	})
	if evicted {
		c.evicted++
	}
	c.dirty = true
}

// Sweep removes every entry older than the TTL and returns how many were
// removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if ok && c.expired(entry, now) {
			c.entries.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
		c.logger.Debug("swept expired cache entries", logging.Int("removed", removed))
	}
	return removed
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries.Remove(path) {
		c.dirty = true
		return true
	}
	return false
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.evicted = 0
	c.dirty = true
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Evicted returns how many entries were evicted for capacity since Open.
func (c *Cache) Evicted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evicted
}

// List returns all entries, most recently used first.
func (c *Cache) List() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.entries.Keys()
	out := make([]Entry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if entry, ok := c.entries.Peek(keys[i]); ok {
			entry.Path = keys[i]
			out = append(out, entry)
		}
	}
	return out
}

// Expired reports whether an entry is past the TTL at the current time.
func (c *Cache) Expired(entry Entry) bool {
	return c.expired(entry, c.now())
}

func (c *Cache) expired(entry Entry, now time.Time) bool {
	return now.Sub(time.Unix(entry.CachedAt, 0)) >= c.ttl
}

// Save writes the cache to disk when it changed since the last save.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	payload := make(map[string]Entry, c.entries.Len())
	for _, key := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(key); ok {
			payload[key] = entry
		}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.dirty = false
	c.logger.Debug("saved response cache",
		logging.Int("entry_count", len(payload)),
		logging.Path(c.path))
	return nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for path, entry := range raw {
		if strings.TrimSpace(path) == "" || strings.TrimSpace(entry.Category) == "" {
			continue
		}
		entry.Path = path
		if entry.LastUsed == 0 {
			entry.LastUsed = entry.CachedAt
		}
		entries = append(entries, entry)
	}
	// Oldest first so the most recently used entries survive capacity eviction.
	slices.SortFunc(entries, func(a, b Entry) int {
		if a.LastUsed != b.LastUsed {
			if a.LastUsed < b.LastUsed {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
	for _, entry := range entries {
		if c.entries.Add(entry.Path, entry) {
			c.evicted++
		}
	}
	if c.evicted > 0 {
		c.dirty = true
	}

	c.logger.Debug("loaded response cache",
		logging.Int("entry_count", c.entries.Len()),
		logging.Path(c.path))
	return nil
}
