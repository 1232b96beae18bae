package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"declutter/internal/logging"
	"declutter/internal/services"
)

// Options controls a scan.
type Options struct {
	Recursive bool
	Logger    *slog.Logger
}

// Scan enumerates the regular files under root. A missing root, or a root
// that is not a directory, is a configuration error. Unreadable
// subdirectories are logged and skipped.
func Scan(ctx context.Context, root string, opts Options) ([]FileIdentity, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	abs, err := filepath.Abs(strings.TrimSpace(root))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scanner", "resolve root", "Unable to resolve target directory", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scanner", "stat root", "Target directory is not accessible", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "scanner", "stat root", fmt.Sprintf("%s is not a directory", abs), nil)
	}

	var files []FileIdentity
	if opts.Recursive {
		files, err = scanRecursive(ctx, abs, logger)
	} else {
		files, err = scanFlat(ctx, abs)
	}
	if err != nil {
		return nil, err
	}

	slices.SortFunc(files, func(a, b FileIdentity) int {
		return strings.Compare(a.Path, b.Path)
	})
	logger.Debug("scan complete",
		logging.Path(abs),
		logging.Int("files", len(files)),
		logging.Bool("recursive", opts.Recursive),
	)
	return files, nil
}

func scanFlat(ctx context.Context, root string) ([]FileIdentity, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	files := make([]FileIdentity, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsHidden(entry.Name()) || !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, identityFromInfo(filepath.Join(root, entry.Name()), info))
	}
	return files, nil
}

func scanRecursive(ctx context.Context, root string, logger *slog.Logger) ([]FileIdentity, error) {
	var files []FileIdentity
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logging.WarnWithContext(logger, "skipping unreadable path",
				"scan_path_unreadable",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "files below this path are not organized"),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if IsHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		files = append(files, identityFromInfo(path, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return files, nil
}

// IsHidden reports whether a file or directory name is dot-prefixed.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Extension returns the lower-case extension of path without the dot.
// Dotfiles such as ".bashrc" have no extension.
func Extension(path string) string {
	base := filepath.Base(path)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}
