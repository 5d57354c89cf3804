// Package dedupe finds records whose primary file has the same content as an
// earlier one and removes the later copies.
//
// Within a duplicate group the first file in scan order is canonical. A
// canonical file and its companions are never deleted, whatever the
// deletion variant.
package dedupe

import (
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/debug"
	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/fingerprint"
	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/internal/scan"
	"github.com/standardbeagle/gtc/internal/selector"
	"github.com/standardbeagle/gtc/internal/stem"
)

// Options configures a Detector
type Options struct {
	Fs       afero.Fs
	Exclude  []string
	Logger   *debug.Logger
	Progress []progress.Option // forwarded to the hashing reporter
}

// Detector scans a corpus for duplicate content. It keeps no state between
// calls; every call rescans.
type Detector struct {
	fs           afero.Fs
	scanner      *scan.Scanner
	log          *debug.Logger
	progressOpts []progress.Option
}

// New creates a detector. A nil Fs means the OS filesystem.
func New(opts Options) *Detector {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Detector{
		fs:           fsys,
		scanner:      scan.New(fsys, opts.Exclude, opts.Logger),
		log:          opts.Logger,
		progressOpts: opts.Progress,
	}
}

// Group is a set of files with equal fingerprints
type Group struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Canonical   string                  `json:"canonical"`
	Duplicates  []string                `json:"duplicates"`
}

// Result of a scan
type Result struct {
	Root       string   `json:"root"`
	Groups     []Group  `json:"groups"`               // only groups with duplicates, by canonical scan position
	Unreadable []string `json:"unreadable,omitempty"` // excluded from hashing, treated as unique
	Scanned    int      `json:"scanned"`              // candidates found (non-empty, selected)
	Hashed     int      `json:"hashed"`
	Cancelled  bool     `json:"cancelled"`
}

// Duplicates flattens every non-canonical member, group by group
func (r *Result) Duplicates() []string {
	var out []string
	for _, g := range r.Groups {
		out = append(out, g.Duplicates...)
	}
	return out
}

// Canonicals lists the canonical file of every group
func (r *Result) Canonicals() []string {
	out := make([]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		out = append(out, g.Canonical)
	}
	return out
}

// Scan hashes every non-empty file under root whose name matches sel and
// groups them by fingerprint. fn, if set, is advanced once per file and may
// cancel; a cancelled scan reports the groups found among the files hashed
// so far, which are still verified duplicates.
func (d *Detector) Scan(root string, sel selector.Selector, fn progress.Func) (*Result, error) {
	entries, err := d.scanner.Files(root, scan.Filter{Selector: sel, SkipEmpty: true})
	if err != nil {
		return nil, err
	}

	res := &Result{Root: root, Scanned: len(entries)}
	reporter := progress.New(fn, d.progressOpts...)

	type bucket struct {
		order int
		files []string
	}
	buckets := make(map[fingerprint.Fingerprint]*bucket)
	var order []fingerprint.Fingerprint

	if reporter.Start(len(entries)) {
		for _, e := range entries {
			fp, err := fingerprint.Of(d.fs, e.Path)
			if err != nil {
				// Unreadable files are excluded from the population, not fatal
				d.log.Dedupe("excluding unreadable %s: %v", e.Path, err)
				res.Unreadable = append(res.Unreadable, e.Path)
			} else {
				res.Hashed++
				b, ok := buckets[fp]
				if !ok {
					b = &bucket{order: len(order)}
					buckets[fp] = b
					order = append(order, fp)
				}
				b.files = append(b.files, e.Path)
			}
			if !reporter.Advance() {
				break
			}
		}
	}
	res.Cancelled = reporter.Cancelled()
	reporter.Finish()

	for _, fp := range order {
		b := buckets[fp]
		if len(b.files) < 2 {
			continue
		}
		res.Groups = append(res.Groups, Group{
			Fingerprint: fp,
			Canonical:   b.files[0],
			Duplicates:  append([]string(nil), b.files[1:]...),
		})
	}

	d.log.Dedupe("%s: %d candidates, %d duplicate groups, %d unreadable", root, res.Scanned, len(res.Groups), len(res.Unreadable))
	return res, nil
}

// FindDuplicates returns every member of every duplicate group except the
// first in scan order
func (d *Detector) FindDuplicates(root string, sel selector.Selector) ([]string, error) {
	res, err := d.Scan(root, sel, nil)
	if err != nil {
		return nil, err
	}
	return res.Duplicates(), nil
}

// DeleteDuplicates deletes exactly the files FindDuplicates reports and
// returns those actually deleted. Per-file failures come back as a
// *errors.MultiError alongside the partial list.
func (d *Detector) DeleteDuplicates(root string, sel selector.Selector) ([]string, error) {
	res, err := d.Scan(root, sel, nil)
	if err != nil {
		return nil, err
	}
	return d.Remove(res.Duplicates())
}

// DeleteDuplicatesWithCompanions deletes every duplicate together with its
// companions. The canonical file of each group and all of its companions are
// subtracted from the deletion set before anything is removed.
func (d *Detector) DeleteDuplicatesWithCompanions(root string, sel selector.Selector) ([]string, error) {
	res, err := d.Scan(root, sel, nil)
	if err != nil {
		return nil, err
	}

	targets, err := d.ExpandWithCompanions(res)
	if err != nil {
		return nil, err
	}
	return d.Remove(targets)
}

// ExpandWithCompanions computes the deletion set of
// DeleteDuplicatesWithCompanions without touching the disk: the union of
// companions of every duplicate, minus protected files, in stable order.
func (d *Detector) ExpandWithCompanions(res *Result) ([]string, error) {
	protected := make(map[string]bool)
	for _, canonical := range res.Canonicals() {
		protected[canonical] = true
		companions, err := stem.CompanionsOf(d.fs, canonical)
		if err != nil {
			// Without the full companion list the record cannot be proven
			// safe, so nothing is deleted
			return nil, errors.NewFileError("list companions", canonical, err)
		}
		for _, c := range companions {
			protected[c] = true
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, dup := range res.Duplicates() {
		companions, err := stem.CompanionsOf(d.fs, dup)
		if err != nil {
			d.log.Dedupe("cannot list companions of %s: %v", dup, err)
			companions = []string{dup}
		}
		for _, c := range companions {
			if seen[c] {
				continue
			}
			seen[c] = true
			if protected[c] {
				d.log.Dedupe("keeping %s: companion of a canonical record", c)
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// Remove deletes paths one by one. Per-file failures come back as a
// *errors.MultiError next to the list of paths actually deleted.
func (d *Detector) Remove(paths []string) ([]string, error) {
	failures := &errors.MultiError{}
	deleted := make([]string, 0, len(paths))
	for _, p := range paths {
		if err := d.fs.Remove(p); err != nil {
			d.log.Dedupe("delete %s failed: %v", p, err)
			failures.Add(errors.NewFileError("delete", p, err))
			continue
		}
		d.log.Dedupe("deleted %s", p)
		deleted = append(deleted, p)
	}
	return deleted, failures.ErrorOrNil()
}
