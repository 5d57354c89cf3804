// Package record implements the transcript convention shared with the
// ground-truth editor: a record is finished when <stem>.gt.txt exists and
// unfinished when only <stem>.txt does.
package record

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/selector"
	"github.com/standardbeagle/gtc/internal/stem"
)

const (
	FinishedSuffix   = ".gt.txt"
	UnfinishedSuffix = ".txt"
)

// Status of a record's transcript
type Status int

const (
	Missing Status = iota
	Unfinished
	Finished
)

func (s Status) String() string {
	switch s {
	case Finished:
		return "finished"
	case Unfinished:
		return "unfinished"
	default:
		return "missing"
	}
}

// MarshalText renders the status by name in JSON output
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is one stem in one directory
type Record struct {
	Dir     string   `json:"dir"`
	Stem    string   `json:"stem"`
	Primary string   `json:"primary"`
	Files   []string `json:"files"`
	Status  Status   `json:"status"`
}

// StatusOf checks which transcript files exist for stem in dir
func StatusOf(fsys afero.Fs, dir, stemName string) Status {
	if exists(fsys, filepath.Join(dir, stemName+FinishedSuffix)) {
		return Finished
	}
	if exists(fsys, filepath.Join(dir, stemName+UnfinishedSuffix)) {
		return Unfinished
	}
	return Missing
}

func exists(fsys afero.Fs, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// List returns the records of dir (not recursive) whose primary file matches
// sel, ordered by stem with digit runs compared by value.
func List(fsys afero.Fs, dir string, sel selector.Selector) ([]Record, error) {
	info, err := fsys.Stat(dir)
	if err != nil {
		return nil, errors.NewRootError(dir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewRootError(dir, fmt.Errorf("not a directory"))
	}

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.NewRootError(dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.Mode().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	groups := stem.Group(names)

	var out []Record
	for _, name := range names {
		if sel != nil && !sel.Match(name) {
			continue
		}
		s := stem.Of(name)
		files, ok := groups[s]
		if !ok {
			continue // primary of this stem already taken
		}
		delete(groups, s)

		rec := Record{Dir: dir, Stem: s, Primary: filepath.Join(dir, name)}
		present := make(map[string]bool, len(files))
		for _, f := range files {
			rec.Files = append(rec.Files, filepath.Join(dir, f))
			present[f] = true
		}
		switch {
		case present[s+FinishedSuffix]:
			rec.Status = Finished
		case present[s+UnfinishedSuffix]:
			rec.Status = Unfinished
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool { return NaturalLess(out[i].Stem, out[j].Stem) })
	return out, nil
}

// Delete removes the record containing path with all of its companions and
// returns the files removed
func Delete(fsys afero.Fs, path string) ([]string, error) {
	files, err := stem.CompanionsOf(fsys, path)
	if err != nil {
		return nil, errors.NewFileError("list companions", path, err)
	}
	if len(files) == 0 {
		return nil, errors.NewFileError("delete", path, fs.ErrNotExist)
	}

	failures := &errors.MultiError{}
	var deleted []string
	for _, f := range files {
		if err := fsys.Remove(f); err != nil {
			failures.Add(errors.NewFileError("delete", f, err))
			continue
		}
		deleted = append(deleted, f)
	}
	return deleted, failures.ErrorOrNil()
}

// ResetFinished renames every <stem>.gt.txt in dir back to <stem>.txt and
// returns the new paths. A record that already has a <stem>.txt is left
// alone and reported as a collision.
func ResetFinished(fsys afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.NewRootError(dir, err)
	}

	failures := &errors.MultiError{}
	var renamed []string
	for _, e := range entries {
		if !e.Mode().IsRegular() || !strings.HasSuffix(e.Name(), FinishedSuffix) {
			continue
		}
		s := stem.Of(e.Name())
		if s+FinishedSuffix != e.Name() {
			continue // a.b.gt.txt does not follow the convention
		}

		from := filepath.Join(dir, e.Name())
		to := filepath.Join(dir, s+UnfinishedSuffix)
		if _, err := fsys.Stat(to); err == nil {
			failures.Add(errors.NewCollisionError("reset", from, to))
			continue
		}
		if err := fsys.Rename(from, to); err != nil {
			failures.Add(errors.NewFileError("reset", from, err))
			continue
		}
		renamed = append(renamed, to)
	}
	return renamed, failures.ErrorOrNil()
}

// Text reads the transcript of a record, preferring the finished one
func Text(fsys afero.Fs, dir, stemName string) (string, Status, error) {
	status := StatusOf(fsys, dir, stemName)
	var path string
	switch status {
	case Finished:
		path = filepath.Join(dir, stemName+FinishedSuffix)
	case Unfinished:
		path = filepath.Join(dir, stemName+UnfinishedSuffix)
	default:
		return "", Missing, nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return "", status, errors.NewFileError("read", path, err)
	}
	return string(data), status, nil
}

// Save writes the transcript under the suffix matching finished and removes
// the transcript of the other state
func Save(fsys afero.Fs, dir, stemName, text string, finished bool) error {
	keep, drop := UnfinishedSuffix, FinishedSuffix
	if finished {
		keep, drop = FinishedSuffix, UnfinishedSuffix
	}

	path := filepath.Join(dir, stemName+keep)
	if err := afero.WriteFile(fsys, path, []byte(text), 0644); err != nil {
		return errors.NewFileError("write", path, err)
	}
	stale := filepath.Join(dir, stemName+drop)
	if err := fsys.Remove(stale); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.NewFileError("delete", stale, err)
	}
	return nil
}

// NaturalLess orders strings with embedded numbers by value, so "2" sorts
// before "10". Equal values fall back to plain comparison ("02" vs "2").
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
