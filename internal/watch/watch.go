// Package watch triggers organize runs when files land in a directory.
//
// Create and write events are collected until the directory has been quiet
// for the settle delay, then the callback runs once with every file that
// changed. Hidden files, directories and the category folders declutter
// itself creates are ignored.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"declutter/internal/logging"
	"declutter/internal/scanner"
)

// DefaultSettle is used when Options.Settle is not positive.
const DefaultSettle = 5 * time.Second

// Options configures a Watcher.
type Options struct {
	Settle time.Duration
	// Ignore lists base names (case-insensitive) whose events are dropped,
	// normally the configured categories.
	Ignore []string
	Logger *slog.Logger
}

// Callback handles a settled batch of changed files, sorted by path.
type Callback func(ctx context.Context, files []string) error

// Watcher monitors one directory (not its subdirectories).
type Watcher struct {
	dir     string
	settle  time.Duration
	ignore  map[string]struct{}
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// New creates a watcher for dir. Call Run to start it.
func New(dir string, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("watch: " + dir + " is not a directory")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	ignore := make(map[string]struct{}, len(opts.Ignore))
	for _, name := range opts.Ignore {
		ignore[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &Watcher{
		dir:     dir,
		settle:  opts.Settle,
		ignore:  ignore,
		logger:  logging.NewComponentLogger(opts.Logger, "watch"),
		watcher: fw,
	}, nil
}

// Run watches until ctx is done. The callback runs on the watch goroutine,
// so events that arrive while it runs are batched for the next round.
// Callback errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onSettled Callback) error {
	defer w.watcher.Close()
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching directory",
		logging.Path(w.dir),
		logging.Duration("settle", w.settle),
	)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.settle)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			files := make([]string, 0, len(pending))
			for file := range pending {
				if _, err := os.Lstat(file); err == nil {
					files = append(files, file)
				}
			}
			clear(pending)
			if len(files) == 0 {
				continue
			}
			slices.Sort(files)
			w.logger.Debug("directory settled", logging.Int("files", len(files)))
			if err := onSettled(ctx, files); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logging.WarnWithContext(w.logger, "organize after change failed", "watch_organize_failed",
					logging.Path(w.dir),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run declutter organize manually to see the full error"),
					logging.String(logging.FieldImpact, "new files stay where they are until the next change"),
				)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	base := filepath.Base(path)
	if scanner.IsHidden(base) {
		return false
	}
	if _, skip := w.ignore[strings.ToLower(base)]; skip {
		return false
	}
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
