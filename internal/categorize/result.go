package categorize

import (
	"fmt"
	"strings"
)

// MiscCategory is the destination of last resort.
const MiscCategory = "Misc"

// Categorization names the destination folder for a file.
type Categorization struct {
	Category  string `json:"category"`
	Subfolder string `json:"subfolder,omitempty"`
}

// Folder renders the category and optional sub-folder as a relative path
// for display purposes.
func (c Categorization) Folder() string {
	if strings.TrimSpace(c.Subfolder) == "" {
		return c.Category
	}
	return c.Category + "/" + c.Subfolder
}

// Kind tags the outcome of categorizing one file.
type Kind int

const (
	// KindSuccess means the categorization came from the service or a valid cache entry.
	KindSuccess Kind = iota
	// KindDegraded means a fallback categorization replaced an unusable answer.
	KindDegraded
	// KindFailed means no categorization is available at all.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindDegraded:
		return "degraded"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source records where a categorization came from.
type Source string

const (
	SourceService   Source = "service"
	SourceCache     Source = "cache"
	SourceExtension Source = "extension"
	SourceFallback  Source = "fallback"
)

// Result is the tagged outcome for a single file.
type Result struct {
	Path           string
	Kind           Kind
	Source         Source
	Categorization Categorization
	// Reason is a short human readable explanation for degraded or failed results.
	Reason string
	Err    error
}

// Success builds a successful result.
func Success(c Categorization, source Source) Result {
	return Result{Kind: KindSuccess, Source: source, Categorization: c}
}

// Degraded builds a degraded result carrying the replacement categorization.
func Degraded(c Categorization, source Source, reason string, err error) Result {
	return Result{Kind: KindDegraded, Source: source, Categorization: c, Reason: reason, Err: err}
}

// Failed builds a failed result.
func Failed(reason string, err error) Result {
	return Result{Kind: KindFailed, Reason: reason, Err: err}
}

// Usable reports whether the result carries a categorization a plan can use.
func (r Result) Usable() bool {
	return r.Kind != KindFailed && strings.TrimSpace(r.Categorization.Category) != ""
}

// WithPath returns a copy of r bound to path.
func (r Result) WithPath(path string) Result {
	r.Path = path
	return r
}
