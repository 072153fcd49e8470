// Package scanner walks a directory tree for files that may contain links.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/lukemcguire/linkguard/extract"
	"github.com/lukemcguire/linkguard/urlutil"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("scan root is not a directory")

// DefaultIgnore names directories that never hold documentation worth checking.
var DefaultIgnore = []string{
	".git", ".venv", "node_modules", "__pycache__", ".pytest_cache", ".idea", "dist", "build",
}

// Options configures Scan.
type Options struct {
	// IgnorePatterns are fnmatch globs tested against every path component
	// and against the slash-separated path relative to the root. They are
	// used in addition to DefaultIgnore.
	IgnorePatterns []string

	Logger *zap.Logger
}

// Scan returns the supported, non-hidden, non-ignored files under root in
// lexical order. Unreadable subdirectories are skipped with a warning.
func Scan(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	patterns := append(slices.Clone(DefaultIgnore), opts.IgnorePatterns...)

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			log.Warn("skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if ignored(filepath.ToSlash(rel), patterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() || !extract.Supported(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	slices.Sort(files)
	log.Debug("scan finished", zap.String("root", root), zap.Int("files", len(files)))
	return files, nil
}

// ignored reports whether rel or any of its components matches a pattern.
func ignored(rel string, patterns []string) bool {
	parts := strings.Split(rel, "/")
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if pattern == "" {
			continue
		}
		if urlutil.MatchGlob(pattern, rel) || urlutil.MatchGlob(strings.TrimPrefix(pattern, "/"), rel) {
			return true
		}
		for _, part := range parts {
			if urlutil.MatchGlob(pattern, part) {
				return true
			}
		}
	}
	return false
}
