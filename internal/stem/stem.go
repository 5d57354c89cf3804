// Package stem groups files into records by the part of their name before
// the first dot. Grouping is purely syntactic: 0001.png, 0001.txt and
// 0001.gt.txt form one record whatever their content.
package stem

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Separator splits a file name into stem and suffix
const Separator = "."

// Of returns the stem of the base name of path
func Of(path string) string {
	s, _ := Split(filepath.Base(path))
	return s
}

// Split cuts name at its first separator. The suffix keeps the separator,
// so stem+suffix == name; names without a separator have an empty suffix.
func Split(name string) (stem, suffix string) {
	if i := strings.Index(name, Separator); i >= 0 {
		return name[:i], name[i:]
	}
	return name, ""
}

// WithStem replaces only the stem of name, keeping the full suffix chain
func WithStem(name, newStem string) string {
	_, suffix := Split(name)
	return newStem + suffix
}

// CompanionsOf returns every file in the directory of path sharing its stem,
// path included, sorted by name. Directories and missing paths have no
// companions.
func CompanionsOf(fsys afero.Fs, path string) ([]string, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}

	dir := filepath.Dir(path)
	want := Of(path)

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if Of(e.Name()) == want {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Group buckets names by stem. Names within a bucket keep their input order.
func Group(names []string) map[string][]string {
	groups := make(map[string][]string)
	for _, n := range names {
		s := Of(n)
		groups[s] = append(groups[s], n)
	}
	return groups
}

// StemsIn counts the entries of dir per stem, directories included,
// since a directory name occupies its stem as much as a file does.
func StemsIn(fsys afero.Fs, dir string) (map[string]int, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	stems := make(map[string]int, len(entries))
	for _, e := range entries {
		stems[Of(e.Name())]++
	}
	return stems, nil
}
