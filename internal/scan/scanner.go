// Package scan walks a corpus and returns candidate files in a stable order.
//
// Scan order is the lexicographic order of the slash-separated path relative
// to the corpus root. It is the tie-break used for canonical duplicate
// selection and for renumbering, so every engine call sees the same order
// for the same tree.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/debug"
	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/selector"
)

// Entry is one regular file found under the root
type Entry struct {
	Path string // filesystem path
	Rel  string // slash-separated path relative to the root
	Size int64
}

// Dir returns the directory containing the entry
func (e Entry) Dir() string {
	return filepath.Dir(e.Path)
}

// Name returns the base name
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// Filter selects entries
type Filter struct {
	Selector  selector.Selector // nil selects everything
	SkipEmpty bool              // drop zero-length files
}

// Scanner handles directory traversal and file discovery
type Scanner struct {
	fs      afero.Fs
	exclude []string // doublestar patterns against the relative path
	log     *debug.Logger
}

// New creates a scanner. Invalid exclude patterns are dropped with a debug line.
func New(fsys afero.Fs, exclude []string, log *debug.Logger) *Scanner {
	s := &Scanner{fs: fsys, log: log}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			log.Scan("ignoring invalid exclude pattern %q", p)
			continue
		}
		s.exclude = append(s.exclude, p)
	}
	return s
}

// CheckRoot verifies root exists and is a directory
func (s *Scanner) CheckRoot(root string) error {
	info, err := s.fs.Stat(root)
	if err != nil {
		return errors.NewRootError(root, err)
	}
	if !info.IsDir() {
		return errors.NewRootError(root, fmt.Errorf("not a directory"))
	}
	return nil
}

// Files walks root and returns matching regular files sorted by Rel.
// Symlinks are never followed. Entries that cannot be read are skipped,
// only a bad root fails the call.
func (s *Scanner) Files(root string, f Filter) ([]Entry, error) {
	if err := s.CheckRoot(root); err != nil {
		return nil, err
	}

	var out []Entry
	err := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Entries that vanish or cannot be listed mid-walk are excluded
			s.log.Scan("skipping %s: %v", path, err)
			if info != nil && info.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			relPath = path
		}
		normalizedPath := filepath.ToSlash(relPath)

		if info.IsDir() {
			// Early directory pruning - skip entire excluded directories
			if s.excluded(normalizedPath) || s.excluded(normalizedPath+"/") {
				s.log.Scan("pruning excluded directory %s", normalizedPath)
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		if s.excluded(normalizedPath) {
			return nil
		}
		if f.SkipEmpty && info.Size() == 0 {
			return nil
		}
		if f.Selector != nil && !f.Selector.Match(info.Name()) {
			return nil
		}

		out = append(out, Entry{Path: path, Rel: normalizedPath, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	s.log.Scan("scanned %s: %d matching files", root, len(out))
	return out, nil
}

func (s *Scanner) excluded(path string) bool {
	for _, pattern := range s.exclude {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}
