package record

import (
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/selector"
)

// Filter decides which records navigation may stop at
type Filter func(Record) bool

// Any stops at every record that has a transcript
func Any(r Record) bool { return r.Status != Missing }

// OnlyUnfinished stops at records still waiting for review
func OnlyUnfinished(r Record) bool { return r.Status == Unfinished }

// Session walks the records of one directory. Creating a session is the only
// way to change directory; nothing else moves it.
type Session struct {
	fs      afero.Fs
	dir     string
	sel     selector.Selector
	records []Record
	pos     int // -1 when no record is selected
}

// NewSession lists dir and selects the first record with a transcript
func NewSession(fsys afero.Fs, dir string, sel selector.Selector) (*Session, error) {
	s := &Session{fs: fsys, dir: dir, sel: sel, pos: -1}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.Next(Any)
	return s, nil
}

func (s *Session) load() error {
	records, err := List(s.fs, s.dir, s.sel)
	if err != nil {
		return err
	}
	s.records = records
	return nil
}

// Dir returns the session directory
func (s *Session) Dir() string { return s.dir }

// Records returns the listed records
func (s *Session) Records() []Record { return s.records }

// Current returns the selected record
func (s *Session) Current() (Record, bool) {
	if s.pos < 0 || s.pos >= len(s.records) {
		return Record{}, false
	}
	return s.records[s.pos], true
}

// Next moves to the next record accepted by f. When there is none the
// position is unchanged and false is returned.
func (s *Session) Next(f Filter) (Record, bool) {
	for i := s.pos + 1; i < len(s.records); i++ {
		if f(s.records[i]) {
			s.pos = i
			return s.records[i], true
		}
	}
	return Record{}, false
}

// Previous moves to the previous record accepted by f
func (s *Session) Previous(f Filter) (Record, bool) {
	start := s.pos - 1
	if s.pos < 0 {
		start = len(s.records) - 1
	}
	for i := start; i >= 0; i-- {
		if f(s.records[i]) {
			s.pos = i
			return s.records[i], true
		}
	}
	return Record{}, false
}

// Seek selects the record with the given stem
func (s *Session) Seek(stemName string) bool {
	for i, r := range s.records {
		if r.Stem == stemName {
			s.pos = i
			return true
		}
	}
	return false
}

// Refresh relists the directory. The selection stays on the same stem, or
// moves to the first record after it when that stem is gone.
func (s *Session) Refresh() error {
	var current string
	hadCurrent := false
	if r, ok := s.Current(); ok {
		current, hadCurrent = r.Stem, true
	}

	if err := s.load(); err != nil {
		return err
	}

	s.pos = -1
	if !hadCurrent {
		return nil
	}
	for i, r := range s.records {
		if r.Stem == current || NaturalLess(current, r.Stem) {
			s.pos = i
			break
		}
	}
	return nil
}
