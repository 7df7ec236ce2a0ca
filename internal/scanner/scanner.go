// Package scanner discovers source files below a set of root directories.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultExtension is the source file extension scanned when none is configured.
const DefaultExtension = "erl"

// Options configures a Scanner.
type Options struct {
	// Extension without the leading dot (default "erl").
	Extension string

	// RespectGitignore skips paths matched by a root's .gitignore.
	RespectGitignore bool

	Logger *slog.Logger
}

// Scanner walks root directories and collects matching source files.
type Scanner struct {
	pattern          string
	respectGitignore bool
	logger           *slog.Logger
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	ext := strings.TrimPrefix(opts.Extension, ".")
	if ext == "" {
		ext = DefaultExtension
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		pattern:          "*." + ext,
		respectGitignore: opts.RespectGitignore,
		logger:           logger,
	}
}

// Pattern returns the glob applied to file basenames, e.g. "*.erl".
func (s *Scanner) Pattern() string {
	return s.pattern
}

// Match reports whether a file path carries the scanned extension.
func (s *Scanner) Match(path string) bool {
	ok, err := filepath.Match(s.pattern, filepath.Base(path))
	return err == nil && ok
}

// Scan returns every matching file under roots, in walk order (lexical per
// directory, roots in the given order). Symlinked directories are not
// followed. Unreadable entries and missing roots are skipped; only context
// cancellation fails the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]string, error) {
	var files []string

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(root)
		if err != nil {
			s.logger.Warn("skipping source root", "root", root, "error", err)
			continue
		}
		if !info.IsDir() {
			s.logger.Warn("skipping source root", "root", root, "error", "not a directory")
			continue
		}

		found, err := s.scanRoot(ctx, root)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	return files, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string) ([]string, error) {
	var gi *ignore.GitIgnore
	if s.respectGitignore {
		gi = loadGitignore(root)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			s.logger.Debug("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if gi != nil && path != root {
			if rel, err := filepath.Rel(root, path); err == nil && gi.MatchesPath(filepath.ToSlash(rel)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			return nil
		}
		// WalkDir never descends into symlinked directories; symlinked files count
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if s.Match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Warn("walk aborted", "root", root, "error", err)
	}

	return files, nil
}

// loadGitignore compiles root/.gitignore, or returns nil when there is none.
func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
