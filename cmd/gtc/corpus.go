package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/gtc/internal/dedupe"
	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/internal/renumber"
	"github.com/standardbeagle/gtc/internal/stem"
	"github.com/standardbeagle/gtc/pkg/pathutil"
)

func (e *env) progressOptions() []progress.Option {
	return []progress.Option{progress.WithInterval(e.cfg.ProgressInterval())}
}

func (e *env) detector() *dedupe.Detector {
	return dedupe.New(dedupe.Options{
		Fs:       e.fs,
		Exclude:  e.cfg.Corpus.Exclude,
		Logger:   e.log,
		Progress: e.progressOptions(),
	})
}

func (e *env) renumberer() *renumber.Renumberer {
	return renumber.New(renumber.Options{
		Fs:       e.fs,
		Exclude:  e.cfg.Corpus.Exclude,
		Logger:   e.log,
		Progress: e.progressOptions(),
	})
}

func (e *env) display(path string) string {
	return pathutil.Display(path, e.cfg.Corpus.Root)
}

// dupsCommand lists duplicate groups without changing anything
func dupsCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	res, err := e.detector().Scan(e.cfg.Corpus.Root, e.sel, progressFunc(c, "hashing"))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, res)
	}
	printGroups(c.App.Writer, e, res)
	return nil
}

func printGroups(w io.Writer, e *env, res *dedupe.Result) {
	if res.Cancelled {
		fmt.Fprintf(w, "Scan cancelled after %d of %d files; groups below are partial.\n", res.Hashed, res.Scanned)
	}
	for _, p := range res.Unreadable {
		fmt.Fprintf(w, "warning: could not read %s\n", e.display(p))
	}
	if len(res.Groups) == 0 {
		fmt.Fprintf(w, "No duplicates among %d files.\n", res.Scanned)
		return
	}

	var rows [][]string
	var reclaimable uint64
	for i, g := range res.Groups {
		size := ""
		if info, err := e.fs.Stat(g.Canonical); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
			reclaimable += uint64(info.Size()) * uint64(len(g.Duplicates))
		}
		group := strconv.Itoa(i + 1)
		rows = append(rows, []string{group, "keep", size, e.display(g.Canonical)})
		for _, d := range g.Duplicates {
			rows = append(rows, []string{group, "duplicate", size, e.display(d)})
		}
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Group", "Role", "Size", "File"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(w, "%d duplicate group(s), %d duplicate file(s), %s reclaimable\n",
		len(res.Groups), len(res.Duplicates()), humanize.Bytes(reclaimable))
}

type dedupeOutput struct {
	Root      string   `json:"root"`
	DryRun    bool     `json:"dry_run"`
	Deleted   []string `json:"deleted"`
	Cancelled bool     `json:"cancelled"`
}

// dedupeCommand deletes every duplicate, optionally with its companions
func dedupeCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	dryRun := c.Bool("dry-run")
	if !dryRun {
		release, err := e.acquire()
		if err != nil {
			return err
		}
		defer release()
	}

	det := e.detector()
	res, err := det.Scan(e.cfg.Corpus.Root, e.sel, progressFunc(c, "hashing"))
	if err != nil {
		return err
	}

	out := dedupeOutput{Root: e.cfg.Corpus.Root, DryRun: dryRun, Deleted: []string{}}
	if res.Cancelled {
		// a partial scan is not a safe basis for deletion
		out.Cancelled = true
		if c.Bool("json") {
			return writeJSON(c.App.Writer, out)
		}
		fmt.Fprintln(c.App.Writer, "Scan cancelled; nothing deleted.")
		return nil
	}

	targets := res.Duplicates()
	if c.Bool("companions") {
		if targets, err = det.ExpandWithCompanions(res); err != nil {
			return err
		}
	}

	var failure error
	if dryRun {
		out.Deleted = append(out.Deleted, targets...)
	} else {
		deleted, err := det.Remove(targets)
		out.Deleted = append(out.Deleted, deleted...)
		failure = err
	}

	if c.Bool("json") {
		if err := writeJSON(c.App.Writer, out); err != nil {
			return err
		}
		return reportFailures(c, failure)
	}

	verb, summary := "deleted", "deleted"
	if dryRun {
		verb, summary = "would delete", "would be deleted"
	}
	for _, p := range out.Deleted {
		fmt.Fprintf(c.App.Writer, "%s %s\n", verb, e.display(p))
	}
	fmt.Fprintf(c.App.Writer, "%d file(s) %s from %d duplicate group(s)\n", len(out.Deleted), summary, len(res.Groups))
	return reportFailures(c, failure)
}

// companionsCommand lists the record a file belongs to
func companionsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("companions takes exactly one path")
	}
	e, err := setup(c)
	if err != nil {
		return err
	}

	path := e.resolve(c.Args().First())
	companions, err := stem.CompanionsOf(e.fs, path)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, map[string]interface{}{
			"path":       path,
			"stem":       stem.Of(path),
			"companions": companions,
		})
	}
	for _, p := range companions {
		fmt.Fprintln(c.App.Writer, e.display(p))
	}
	return nil
}

// renumberCommand plans and applies a dense renumbering
func renumberCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	dryRun := c.Bool("dry-run")
	if !dryRun {
		release, err := e.acquire()
		if err != nil {
			return err
		}
		defer release()
	}

	r := e.renumberer()
	plan, err := r.Plan(e.cfg.Corpus.Root, e.sel, e.cfg.Renumber.Width)
	if err != nil {
		return err
	}

	if dryRun {
		if c.Bool("json") {
			return writeJSON(c.App.Writer, plan)
		}
		printPlan(c.App.Writer, e, plan)
		return nil
	}

	rep, failure := r.Apply(plan, progressFunc(c, "renaming"))
	if c.Bool("json") {
		if err := writeJSON(c.App.Writer, rep); err != nil {
			return err
		}
		return reportFailures(c, failure)
	}

	if rep.Cancelled {
		fmt.Fprintln(c.App.Writer, "Renumbering cancelled; every record is complete under its old or new name.")
	}
	fmt.Fprintf(c.App.Writer, "%d record(s): %d renamed, %d unchanged, %d failed\n",
		rep.Planned, rep.Renamed, rep.Unchanged, len(rep.Failed))
	return reportFailures(c, failure)
}

func printPlan(w io.Writer, e *env, plan *renumber.Plan) {
	var rows [][]string
	for _, m := range plan.Moves {
		if m.Identity() {
			continue
		}
		rows = append(rows, []string{
			e.display(m.Dir),
			m.OldStem,
			m.NewStem,
			strconv.Itoa(len(m.Files)),
		})
	}
	if len(rows) == 0 {
		fmt.Fprintf(w, "All %d record(s) are already numbered.\n", len(plan.Moves))
		return
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Dir", "From", "To", "Files"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
	fmt.Fprintf(w, "%d of %d record(s) would be renamed (width %d)\n", len(rows), len(plan.Moves), plan.Width)
}

// recordDir resolves the optional [dir] argument
func recordDir(c *cli.Context, e *env) string {
	return filepath.Clean(e.resolve(c.Args().First()))
}
