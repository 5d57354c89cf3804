package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/record"
	"github.com/standardbeagle/gtc/internal/stem"
)

// statusCommand lists the records of one directory with their status
func statusCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	dir := recordDir(c, e)
	records, err := record.List(e.fs, dir, e.sel)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, records)
	}
	if len(records) == 0 {
		fmt.Fprintf(c.App.Writer, "No records in %s.\n", e.display(dir))
		return nil
	}

	counts := make(map[record.Status]int)
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		counts[r.Status]++
		rows = append(rows, []string{r.Stem, r.Status.String(), strconv.Itoa(len(r.Files))})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"Stem", "Status", "Files"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	))
	fmt.Fprintf(c.App.Writer, "%d record(s): %d finished, %d unfinished, %d missing\n",
		len(records), counts[record.Finished], counts[record.Unfinished], counts[record.Missing])
	return nil
}

// nextCommand prints the record a reviewer should open next
func nextCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	dir := recordDir(c, e)
	session, err := record.NewSession(e.fs, dir, e.sel)
	if err != nil {
		return err
	}

	filter := record.Any
	if c.Bool("unfinished") {
		filter = record.OnlyUnfinished
	}

	var (
		r  record.Record
		ok bool
	)
	if after := c.String("after"); after != "" {
		if !session.Seek(after) {
			return fmt.Errorf("no record %q in %s", after, e.display(dir))
		}
		r, ok = session.Next(filter)
	} else {
		r, ok = session.Current()
		if ok && !filter(r) {
			r, ok = session.Next(filter)
		}
	}

	if !ok {
		if c.Bool("json") {
			return writeJSON(c.App.Writer, nil)
		}
		fmt.Fprintln(c.App.Writer, "Nothing left to review.")
		return nil
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, r)
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\n", e.display(r.Primary), r.Status)
	return nil
}

// recordOf splits a path argument into its directory and stem
func recordOf(c *cli.Context, e *env) (dir, stemName string, err error) {
	if c.NArg() != 1 {
		return "", "", fmt.Errorf("%s takes exactly one path", c.Command.Name)
	}
	path := e.resolve(c.Args().First())
	if _, err := e.fs.Stat(path); err != nil {
		return "", "", err
	}
	return filepath.Dir(path), stem.Of(path), nil
}

// showCommand prints the transcript of a record
func showCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	dir, stemName, err := recordOf(c, e)
	if err != nil {
		return err
	}

	text, status, err := record.Text(e.fs, dir, stemName)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, map[string]interface{}{
			"dir":    dir,
			"stem":   stemName,
			"status": status,
			"text":   text,
		})
	}
	if status == record.Missing {
		return fmt.Errorf("%s has no transcript", filepath.Join(e.display(dir), stemName))
	}
	fmt.Fprint(c.App.Writer, text)
	return nil
}

// saveCommand stores stdin as the transcript of a record
func saveCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	dir, stemName, err := recordOf(c, e)
	if err != nil {
		return err
	}

	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	text, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	if err := record.Save(e.fs, dir, stemName, string(text), c.Bool("finished")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "saved %s (%s)\n", filepath.Join(e.display(dir), stemName), record.StatusOf(e.fs, dir, stemName))
	return nil
}

// resetFinishedCommand renames every finished transcript back to unfinished
func resetFinishedCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	dir := recordDir(c, e)
	renamed, failure := record.ResetFinished(e.fs, dir)
	if errors.IsRootError(failure) {
		return failure
	}
	if c.Bool("json") {
		if renamed == nil {
			renamed = []string{}
		}
		if err := writeJSON(c.App.Writer, renamed); err != nil {
			return err
		}
		return reportFailures(c, failure)
	}
	for _, p := range renamed {
		fmt.Fprintf(c.App.Writer, "reset %s\n", e.display(p))
	}
	fmt.Fprintf(c.App.Writer, "%d transcript(s) reset\n", len(renamed))
	return reportFailures(c, failure)
}

// deleteRecordCommand removes a file and all of its companions
func deleteRecordCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("delete-record takes exactly one path")
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	deleted, failure := record.Delete(e.fs, e.resolve(c.Args().First()))
	if c.Bool("json") {
		if deleted == nil {
			deleted = []string{}
		}
		if err := writeJSON(c.App.Writer, deleted); err != nil {
			return err
		}
		return reportFailures(c, failure)
	}
	for _, p := range deleted {
		fmt.Fprintf(c.App.Writer, "deleted %s\n", e.display(p))
	}
	return reportFailures(c, failure)
}
