// Package renumber rewrites record stems into the dense sequence 1..N.
//
// Records are collected in scan order across the whole subtree and numbered
// globally; every record keeps its directory and its suffix chain. Moves are
// executed per directory by a scheduler that only ever renames into a free
// stem, so no file that has not been moved yet can be overwritten, whatever
// the overlap between old and new stems.
package renumber

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/debug"
	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/internal/scan"
	"github.com/standardbeagle/gtc/internal/selector"
	"github.com/standardbeagle/gtc/internal/stem"
)

// DefaultWidth is the zero padding applied when no width is configured
const DefaultWidth = 4

// MaxWidth bounds the padding to what fits an int64 counter
const MaxWidth = 18

// StagingPrefix starts every temporary stem used to break rename cycles
const StagingPrefix = "gtc-"

// Options configures a Renumberer
type Options struct {
	Fs       afero.Fs
	Exclude  []string
	Logger   *debug.Logger
	Progress []progress.Option
}

// Renumberer plans and applies renumbering
type Renumberer struct {
	fs           afero.Fs
	scanner      *scan.Scanner
	log          *debug.Logger
	progressOpts []progress.Option
}

// New creates a renumberer. A nil Fs means the OS filesystem.
func New(opts Options) *Renumberer {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Renumberer{
		fs:           fsys,
		scanner:      scan.New(fsys, opts.Exclude, opts.Logger),
		log:          opts.Logger,
		progressOpts: opts.Progress,
	}
}

// Rename is one file of a record moving to its new name
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Move renames one record
type Move struct {
	Dir     string   `json:"dir"`
	OldStem string   `json:"old_stem"`
	NewStem string   `json:"new_stem"`
	Files   []Rename `json:"files"`

	err error // companions could not be listed
}

// Identity reports whether the record already carries its target stem
func (m Move) Identity() bool {
	return m.OldStem == m.NewStem
}

// Plan is the full old -> new stem mapping for a corpus
type Plan struct {
	Root  string `json:"root"`
	Width int    `json:"width"`
	Moves []Move `json:"moves"`
}

// Report summarizes a renumber run
type Report struct {
	Planned   int      `json:"planned"`
	Renamed   int      `json:"renamed"`
	Unchanged int      `json:"unchanged"`
	Failed    []string `json:"failed,omitempty"` // original paths of records left in place
	Cancelled bool     `json:"cancelled"`
	Moves     []Move   `json:"moves,omitempty"` // completed moves, in execution order
}

// Name formats number n padded to width digits. Numbers wider than width
// keep every digit.
func Name(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

// Plan computes the mapping without touching the disk. Every regular file
// whose name matches sel names a record, zero-length files included.
func (r *Renumberer) Plan(root string, sel selector.Selector, width int) (*Plan, error) {
	if width < 1 || width > MaxWidth {
		return nil, errors.NewConfigError("width", fmt.Sprint(width), fmt.Errorf("must be between 1 and %d", MaxWidth))
	}

	entries, err := r.scanner.Files(root, scan.Filter{Selector: sel})
	if err != nil {
		return nil, err
	}

	plan := &Plan{Root: root, Width: width}
	seen := make(map[string]bool)
	for _, e := range entries {
		key := filepath.Join(e.Dir(), stem.Of(e.Path))
		if seen[key] {
			continue
		}
		seen[key] = true

		m := Move{
			Dir:     e.Dir(),
			OldStem: stem.Of(e.Path),
			NewStem: Name(len(plan.Moves)+1, width),
		}
		companions, err := stem.CompanionsOf(r.fs, e.Path)
		if err != nil {
			m.err = err
		} else if len(companions) == 0 {
			// vanished between the walk and the listing
			m.err = fmt.Errorf("%s no longer exists", e.Path)
		}
		for _, c := range companions {
			m.Files = append(m.Files, Rename{
				From: c,
				To:   filepath.Join(m.Dir, stem.WithStem(filepath.Base(c), m.NewStem)),
			})
		}
		plan.Moves = append(plan.Moves, m)
	}

	r.log.Renumber("%s: planned %d records at width %d", root, len(plan.Moves), width)
	return plan, nil
}

// Renumber applies the plan for root. fn is advanced before every record and
// may cancel; a cancelled run leaves every record either fully under its old
// stem or fully under its new one. Per-record failures are returned as an
// *errors.MultiError next to the report.
func (r *Renumberer) Renumber(root string, sel selector.Selector, width int, fn progress.Func) (*Report, error) {
	plan, err := r.Plan(root, sel, width)
	if err != nil {
		return nil, err
	}
	return r.Apply(plan, fn)
}

// Apply executes a plan computed by Plan
func (r *Renumberer) Apply(plan *Plan, fn progress.Func) (*Report, error) {
	rep := &Report{Planned: len(plan.Moves)}
	failures := &errors.MultiError{}
	reporter := progress.New(fn, r.progressOpts...)

	if reporter.Start(len(plan.Moves)) {
		var dirs []string
		byDir := make(map[string][]*task)
		for i := range plan.Moves {
			m := &plan.Moves[i]
			if _, ok := byDir[m.Dir]; !ok {
				dirs = append(dirs, m.Dir)
			}
			byDir[m.Dir] = append(byDir[m.Dir], newTask(m))
		}

		run := &runner{
			r:        r,
			rep:      rep,
			failures: failures,
			reporter: reporter,
			session:  uuid.NewString(),
		}
		for _, dir := range dirs {
			if stop := run.dir(dir, byDir[dir]); stop {
				break
			}
		}
	}
	rep.Cancelled = reporter.Cancelled()
	reporter.Finish()

	r.log.Renumber("%s: renamed %d, unchanged %d, failed %d, cancelled %v",
		plan.Root, rep.Renamed, rep.Unchanged, len(rep.Failed), rep.Cancelled)
	return rep, failures.ErrorOrNil()
}

type task struct {
	move     *Move
	stem     string   // stem currently on disk
	files    []string // paths currently on disk
	staged   bool
	cycle    bool
	advanced bool
}

func newTask(m *Move) *task {
	t := &task{move: m, stem: m.OldStem}
	for _, f := range m.Files {
		t.files = append(t.files, f.From)
	}
	return t
}

type runner struct {
	r        *Renumberer
	rep      *Report
	failures *errors.MultiError
	reporter *progress.Reporter
	session  string
	staged   int
	draining bool
}

// count advances progress once for a record that will not be moved
func (run *runner) count(t *task) {
	if t.advanced {
		return
	}
	t.advanced = true
	if !run.reporter.Advance() {
		run.draining = true
	}
}

// take claims the next record for mutation. Once cancelled only records of
// a cycle with a staged member are still taken, so the cycle can complete.
func (run *runner) take(t *task) bool {
	if t.advanced {
		return true
	}
	if run.draining {
		if !t.cycle {
			return false
		}
		t.advanced = true
		run.reporter.Advance()
		return true
	}
	if run.reporter.Advance() {
		t.advanced = true
		return true
	}
	run.draining = true
	if t.cycle {
		t.advanced = true
		return true
	}
	return false
}

// dir executes the moves of one directory and reports whether the whole run
// must stop.
func (run *runner) dir(dir string, tasks []*task) bool {
	occupied, err := stem.StemsIn(run.r.fs, dir)
	if err != nil {
		for _, t := range tasks {
			run.fail(t, errors.NewFileError("list directory", dir, err))
		}
		return false
	}

	var pending []*task
	for _, t := range tasks {
		switch {
		case t.move.err != nil:
			run.fail(t, errors.NewFileError("list companions", filepath.Join(dir, t.move.OldStem), t.move.err))
		case t.move.Identity():
			if !run.take(t) {
				return true
			}
			run.rep.Unchanged++
		default:
			pending = append(pending, t)
		}
	}

	for len(pending) > 0 {
		if run.draining && run.staged == 0 {
			return true
		}

		progressed := false
		remaining := make([]*task, 0, len(pending))
		for _, t := range pending {
			if occupied[t.move.NewStem] > 0 || !run.take(t) {
				remaining = append(remaining, t)
				continue
			}
			progressed = true
			if err := run.shift(t, t.move.NewStem, occupied); err != nil {
				run.abandon(t, occupied, err)
				continue
			}
			run.done(t)
		}
		pending = remaining
		if run.draining && run.staged == 0 {
			return true
		}
		if progressed || len(pending) == 0 {
			continue
		}

		owners := make(map[string]*task, len(pending))
		for _, t := range pending {
			owners[t.stem] = t
		}

		// Targets held by anything outside the pending set never free up
		remaining = make([]*task, 0, len(pending))
		for _, t := range pending {
			if owners[t.move.NewStem] == nil && (!run.draining || t.cycle) {
				progressed = true
				run.abandon(t, occupied, errors.NewCollisionError("rename", filepath.Join(dir, t.stem),
					filepath.Join(dir, t.move.NewStem)))
				continue
			}
			remaining = append(remaining, t)
		}
		pending = remaining
		if progressed {
			continue
		}
		if run.draining {
			// Every staged cycle is complete or broken; stop here
			return true
		}

		// Everything left waits on another pending record: stage one member
		// of a cycle under a fresh stem and let the cycle drain.
		c := cycleMember(pending[0], owners)
		if !run.take(c) {
			return true
		}
		staging := run.stagingStem(occupied)
		run.r.log.Renumber("breaking cycle in %s: staging %s as %s", dir, c.stem, staging)
		if err := run.shift(c, staging, occupied); err != nil {
			run.abandon(c, occupied, err)
			continue
		}
		c.staged = true
		run.staged++
		for x := c; ; {
			x.cycle = true
			x = owners[x.move.NewStem]
			if x == c {
				break
			}
		}
	}
	return false
}

// cycleMember follows the chain of blockers from t until it repeats and
// returns a record on the cycle
func cycleMember(t *task, owners map[string]*task) *task {
	visited := make(map[*task]bool)
	for !visited[t] {
		visited[t] = true
		t = owners[t.move.NewStem]
	}
	return t
}

func (run *runner) stagingStem(occupied map[string]int) string {
	for n := 1; ; n++ {
		s := fmt.Sprintf("%s%s-%d", StagingPrefix, run.session, n)
		if occupied[s] == 0 {
			return s
		}
	}
}

func (run *runner) done(t *task) {
	if t.staged {
		t.staged = false
		run.staged--
	}
	run.rep.Renamed++
	run.rep.Moves = append(run.rep.Moves, *t.move)
	run.r.log.Renumber("%s: %s -> %s", t.move.Dir, t.move.OldStem, t.move.NewStem)
}

// abandon gives up on a record. A staged record is moved back to its
// original stem when that is still free.
func (run *runner) abandon(t *task, occupied map[string]int, cause error) {
	if t.staged {
		t.staged = false
		run.staged--
		if occupied[t.move.OldStem] == 0 {
			if err := run.shift(t, t.move.OldStem, occupied); err != nil {
				cause = errors.NewMultiError([]error{cause, err})
			}
		}
		if t.stem != t.move.OldStem {
			cause = fmt.Errorf("%w (record left at %s)", cause, filepath.Join(t.move.Dir, t.stem))
		}
	}
	run.fail(t, cause)
}

func (run *runner) fail(t *task, cause error) {
	var fe *errors.FileError
	if e, ok := cause.(*errors.FileError); ok {
		fe = e
	} else {
		fe = errors.NewFileError("rename", filepath.Join(t.move.Dir, t.move.OldStem), cause)
	}
	run.failures.Add(fe)
	run.count(t)
	if len(t.move.Files) == 0 {
		run.rep.Failed = append(run.rep.Failed, filepath.Join(t.move.Dir, t.move.OldStem))
	}
	for _, f := range t.move.Files {
		run.rep.Failed = append(run.rep.Failed, f.From)
	}
	run.r.log.Renumber("%s: %s left unrenumbered: %v", t.move.Dir, t.move.OldStem, cause)
}

// shift renames every file of t to stem to as a unit
func (run *runner) shift(t *task, to string, occupied map[string]int) error {
	targets := make([]string, len(t.files))
	for i, f := range t.files {
		targets[i] = filepath.Join(t.move.Dir, stem.WithStem(filepath.Base(f), to))
	}
	if err := run.renameAll(t.files, targets); err != nil {
		return err
	}
	occupied[t.stem] -= len(t.files)
	if occupied[t.stem] <= 0 {
		delete(occupied, t.stem)
	}
	occupied[to] += len(targets)
	t.stem = to
	t.files = targets
	return nil
}

// renameAll renames from[i] to to[i]. On the first failure the files already
// moved are moved back.
func (run *runner) renameAll(from, to []string) error {
	fsys := run.r.fs
	for i := range from {
		var err error
		if _, statErr := fsys.Stat(to[i]); statErr == nil {
			err = errors.NewCollisionError("rename", from[i], to[i])
		} else if err = fsys.Rename(from[i], to[i]); err != nil {
			err = errors.NewFileError("rename", from[i], err)
		}
		if err == nil {
			continue
		}

		for j := i - 1; j >= 0; j-- {
			if rbErr := fsys.Rename(to[j], from[j]); rbErr != nil {
				run.r.log.Renumber("rollback of %s failed: %v", to[j], rbErr)
				return errors.NewMultiError([]error{err, errors.NewFileError("rollback", to[j], rbErr)})
			}
		}
		return err
	}
	return nil
}
