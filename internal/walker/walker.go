package walker

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lotar-dev/lotar/internal/ignore"
)

// ErrStopped is returned from visit callbacks to end a walk early without
// signalling a failure.
var ErrStopped = errors.New("walk stopped")

// WarnFunc receives non-fatal problems encountered during a walk.
type WarnFunc func(path string, err error)

// Walker enumerates candidate files under one or more scan roots, applying
// the ignore filter before any file is opened. A walker is single-session:
// each Walk call starts fresh with its own visited-path set.
type Walker struct {
	root   string
	filter *ignore.Filter
	warn   WarnFunc
}

// New builds a walker whose ignore rules are evaluated against paths
// relative to root, the directory the filter was loaded from. Scan roots
// may sit below root; anchored patterns still apply from root.
func New(root string, filter *ignore.Filter, warn WarnFunc) *Walker {
	if warn == nil {
		warn = func(string, error) {}
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Walker{root: root, filter: filter, warn: warn}
}

// Walk visits every non-ignored regular file under the roots, calling visit
// with the absolute path and the path relative to its root. Ignored
// directories are pruned without descending. Unreadable entries are reported
// through the warn callback and skipped; they never abort the walk.
// Symlink cycles are broken by visiting each resolved directory at most once.
// Returning a non-nil error from visit stops the walk.
func (w *Walker) Walk(roots []string, visit func(path, rel string) error) error {
	seen := make(map[string]bool)
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.warn(root, err)
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.warn(root, err)
			continue
		}
		if !info.IsDir() {
			rel := w.relOf(filepath.Dir(abs), abs)
			if !w.filter.IsIgnored(rel, false) {
				if err := visit(abs, rel); err != nil {
					return err
				}
			}
			continue
		}
		if err := w.walkDir(abs, abs, seen, visit); err != nil {
			return err
		}
	}
	return nil
}

// relOf maps path to its filter-facing form: relative to the walker root
// when inside it, relative to the scan root otherwise.
func (w *Walker) relOf(scanRoot, path string) string {
	if rel, err := filepath.Rel(w.root, path); err == nil &&
		rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rel
	}
	rel, err := filepath.Rel(scanRoot, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

func (w *Walker) walkDir(scanRoot, dir string, seen map[string]bool, visit func(path, rel string) error) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		w.warn(dir, err)
		return nil
	}
	if seen[real] {
		return nil
	}
	seen[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.warn(dir, err)
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		rel := w.relOf(scanRoot, path)

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				w.warn(path, err)
				continue
			}
			isDir = target.IsDir()
		}

		if w.filter.IsIgnored(rel, isDir) {
			continue
		}
		if isDir {
			if err := w.walkDir(scanRoot, path, seen, visit); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		if err := visit(path, rel); err != nil {
			return err
		}
	}
	return nil
}
