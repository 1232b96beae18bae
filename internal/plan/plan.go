// Package plan turns categorization results into an ordered list of moves.
//
// Destinations are root/<Category>[/<Subfolder>]/<basename>. Entries keep
// scan order, so the same inputs always produce the same plan.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"declutter/internal/categorize"
	"declutter/internal/scanner"
	"declutter/internal/textutil"
)

// Options controls plan building.
type Options struct {
	// Overwrite marks conflicting destinations for replacement instead of skipping.
	Overwrite bool
}

// Entry is one planned move.
type Entry struct {
	Source      string
	Destination string
	Size        int64
	Result      categorize.Result
	// InPlace is set when the file already sits at its destination.
	InPlace bool
	// Conflict is set when a file already exists at Destination.
	Conflict bool
	// Renamed is set when the name was suffixed to avoid a collision inside
	// the plan.
	Renamed bool
}

// Folder returns the destination directory relative to the plan root.
func (e Entry) Folder(root string) string {
	rel, err := filepath.Rel(root, filepath.Dir(e.Destination))
	if err != nil {
		return filepath.Dir(e.Destination)
	}
	return rel
}

// Plan is an ordered set of moves rooted at Root.
type Plan struct {
	Root      string
	Overwrite bool
	Entries   []Entry
	// RunID ties the plan to the run that produced it. Build leaves it empty.
	RunID string
}

// Build combines scanned files with their categorization results. files and
// results must be aligned index by index.
func Build(root string, files []scanner.FileIdentity, results []categorize.Result, opts Options) (*Plan, error) {
	if len(files) != len(results) {
		return nil, fmt.Errorf("build plan: %d files but %d results", len(files), len(results))
	}
	root = filepath.Clean(root)
	p := &Plan{Root: root, Overwrite: opts.Overwrite, Entries: make([]Entry, 0, len(files))}

	// Every scanned path is reserved so a move never lands on a file that is
	// itself waiting to be moved.
	taken := make(map[string]struct{}, len(files)*2)
	for _, file := range files {
		taken[file.Path] = struct{}{}
	}

	for i, file := range files {
		result := results[i]
		if result.Path != "" && result.Path != file.Path {
			return nil, fmt.Errorf("build plan: result %d is for %s, not %s", i, result.Path, file.Path)
		}
		if !result.Usable() {
			result = categorize.Fallback(file.Name(), nil, result.Reason, result.Err).WithPath(file.Path)
		}

		dir := DestinationDir(root, result.Categorization)
		dest := filepath.Join(dir, file.Name())
		entry := Entry{Source: file.Path, Size: file.Size, Result: result}

		if dest == file.Path {
			entry.Destination = dest
			entry.InPlace = true
			p.Entries = append(p.Entries, entry)
			continue
		}
		unique, renamed := uniqueName(dest, taken)
		taken[unique] = struct{}{}
		entry.Destination = unique
		entry.Renamed = renamed
		entry.Conflict = exists(unique)
		p.Entries = append(p.Entries, entry)
	}
	return p, nil
}

// DestinationDir returns root/<Category>[/<Subfolder>] with both segments
// sanitized. An unusable category becomes Misc; an unusable sub-folder is
// dropped.
func DestinationDir(root string, c categorize.Categorization) string {
	category := textutil.SanitizeSegment(c.Category)
	if category == "" {
		category = categorize.MiscCategory
	}
	dir := filepath.Join(root, category)
	if sub := textutil.SanitizeFolderName(c.Subfolder); sub != "" && !textutil.EqualFold(sub, category) {
		dir = filepath.Join(dir, sub)
	}
	return dir
}

func uniqueName(dest string, taken map[string]struct{}) (string, bool) {
	if _, used := taken[dest]; !used {
		return dest, false
	}
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, used := taken[candidate]; !used {
			return candidate, true
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// Moves returns the entries that would change the file system.
func (p *Plan) Moves() []Entry {
	out := make([]Entry, 0, len(p.Entries))
	for _, entry := range p.Entries {
		if !entry.InPlace {
			out = append(out, entry)
		}
	}
	return out
}

// Stats summarizes a plan for previews.
type Stats struct {
	Total     int
	Moves     int
	InPlace   int
	Conflicts int
	Degraded  int
	Bytes     int64
}

// Stats computes preview counters.
func (p *Plan) Stats() Stats {
	var s Stats
	for _, entry := range p.Entries {
		s.Total++
		if entry.InPlace {
			s.InPlace++
			continue
		}
		s.Moves++
		s.Bytes += entry.Size
		if entry.Conflict {
			s.Conflicts++
		}
		if entry.Result.Kind != categorize.KindSuccess {
			s.Degraded++
		}
	}
	return s
}

// Folders returns the distinct destination folders (relative to Root) with
// the number of files planned for each, sorted by folder name.
func (p *Plan) Folders() []FolderCount {
	counts := map[string]int{}
	for _, entry := range p.Moves() {
		counts[entry.Folder(p.Root)]++
	}
	out := make([]FolderCount, 0, len(counts))
	for folder, n := range counts {
		out = append(out, FolderCount{Folder: folder, Files: n})
	}
	slices.SortFunc(out, func(a, b FolderCount) int {
		return strings.Compare(a.Folder, b.Folder)
	})
	return out
}

// FolderCount pairs a destination folder with its planned file count.
type FolderCount struct {
	Folder string
	Files  int
}

// Empty reports whether the plan has nothing to move.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Moves()) == 0
}
