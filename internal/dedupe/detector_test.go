package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/fingerprint"
	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/internal/selector"
	"github.com/standardbeagle/gtc/testhelpers"
)

var txt = selector.MustParse(`re:.*\.txt`)

func TestDeleteDuplicates_EndToEnd(t *testing.T) {
	c := testhelpers.NewMemCorpus(t)
	for _, n := range []string{"1-0.txt", "1-1.txt"} {
		c.File(n, "a")
	}
	for _, n := range []string{"2-0.txt", "2-1.txt", "2-2.txt"} {
		c.File(n, "b")
	}

	d := New(Options{Fs: c.Fs})
	deleted, err := d.DeleteDuplicates(c.Root, txt)
	require.NoError(t, err)

	assert.Equal(t, []string{"1-1.txt", "2-1.txt", "2-2.txt"}, c.Rel(deleted))
	assert.Equal(t, []string{"1-0.txt", "2-0.txt"}, c.Names())
}

func TestFindDuplicates(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		File("1txt", "test1").
		File("1-0.txt", "test1").
		File("1-1.txt", "test1").
		File("2-0.txt", "test2").
		File("2-1.txt", "test2").
		File("2-2.txt", "test2").
		File("3-0.txt", "").
		File("3-1.txt", "").
		File("3-2.txt", "")

	d := New(Options{Fs: c.Fs})
	got, err := d.FindDuplicates(c.Root, txt)
	require.NoError(t, err)

	// group order follows the canonical's scan position, members in scan order
	assert.Equal(t, c.Paths("1-1.txt", "2-1.txt", "2-2.txt"), got)
	// nothing was touched
	assert.Len(t, c.Names(), 9)
}

func TestFindDuplicates_Idempotent(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		File("b/1.png", "same").
		File("a/1.png", "same").
		File("c.png", "same").
		File("d.png", "other")
	d := New(Options{Fs: c.Fs})
	png := selector.MustParse("*.png")

	first, err := d.FindDuplicates(c.Root, png)
	require.NoError(t, err)
	second, err := d.FindDuplicates(c.Root, png)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// "a/1.png" < "b/1.png" < "c.png": the canonical is a/1.png
	assert.Equal(t, c.Paths("b/1.png", "c.png"), first)
}

func TestScan_ZeroLengthNeverDuplicates(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		File("empty-1.png", "").
		File("empty-2.png", "").
		File("full.png", "x")

	res, err := New(Options{Fs: c.Fs}).Scan(c.Root, selector.Any(), nil)
	require.NoError(t, err)

	assert.Empty(t, res.Groups)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Hashed)
}

func TestScan_GroupDetails(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		File("x.png", "payload").
		File("y.png", "payload")

	res, err := New(Options{Fs: c.Fs}).Scan(c.Root, selector.Any(), nil)
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, fingerprint.OfBytes([]byte("payload")), g.Fingerprint)
	assert.Equal(t, c.Path("x.png"), g.Canonical)
	assert.Equal(t, c.Paths("y.png"), g.Duplicates)
	assert.Equal(t, c.Paths("x.png"), res.Canonicals())
	assert.False(t, res.Cancelled)
}

func TestScan_UnreadableFileTreatedAsUnique(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		File("1.png", "same").
		File("2.png", "same").
		File("3.png", "same")
	faulty := testhelpers.NewFaultFs(c.Fs).FailOpen(c.Path("1.png"))

	res, err := New(Options{Fs: faulty}).Scan(c.Root, selector.Any(), nil)
	require.NoError(t, err)

	assert.Equal(t, c.Paths("1.png"), res.Unreadable)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, c.Path("2.png"), res.Groups[0].Canonical)
	assert.Equal(t, c.Paths("3.png"), res.Groups[0].Duplicates)
}

func TestScan_RootError(t *testing.T) {
	c := testhelpers.NewMemCorpus(t)
	d := New(Options{Fs: c.Fs})

	_, err := d.Scan(c.Path("missing"), selector.Any(), nil)
	assert.True(t, errors.IsRootError(err))

	deleted, err := d.DeleteDuplicatesWithCompanions(c.Path("missing"), selector.Any())
	assert.True(t, errors.IsRootError(err))
	assert.Empty(t, deleted)
}

func TestScan_ProgressAndCancellation(t *testing.T) {
	c := testhelpers.NewMemCorpus(t)
	for _, n := range []string{"1.png", "2.png", "3.png", "4.png", "5.png"} {
		c.File(n, "same")
	}

	// start, then two advances answered, the second cancels
	script := testhelpers.NewProgressScript(true, true, false)
	d := New(Options{
		Fs:       c.Fs,
		Progress: []progress.Option{progress.WithClock(testhelpers.TickingClock(time.Second))},
	})

	res, err := d.Scan(c.Root, selector.Any(), script.Func)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, 2, res.Hashed)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, c.Paths("2.png"), res.Groups[0].Duplicates)

	calls := script.Calls()
	assert.Equal(t, testhelpers.ProgressCall{Current: 0, Total: 5}, calls[0])
	assert.Equal(t, testhelpers.ProgressCall{Current: 5, Total: 5}, calls[len(calls)-1])
}

func TestDeleteDuplicatesWithCompanions(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).File("1png", "test1")
	for _, stem := range []string{"1-0", "1-1"} {
		c.Record("", stem, "test1", ".png", ".txt")
	}
	for _, stem := range []string{"2-0", "2-1", "2-2"} {
		c.Record("", stem, "test2", ".png", ".gt.txt")
	}
	for _, stem := range []string{"3-0", "3-1", "3-2"} {
		c.Record("", stem, "", ".png", ".txt")
	}

	d := New(Options{Fs: c.Fs})
	deleted, err := d.DeleteDuplicatesWithCompanions(c.Root, selector.MustParse(`re:.*\.png`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"1-1.png", "1-1.txt",
		"2-1.gt.txt", "2-1.png",
		"2-2.gt.txt", "2-2.png",
	}, c.Rel(deleted))

	remaining := c.Names()
	for _, keep := range []string{"1-0.png", "1-0.txt", "2-0.png", "2-0.gt.txt", "1png", "3-0.png", "3-1.txt"} {
		assert.Contains(t, remaining, keep)
	}
}

func TestDeleteDuplicatesWithCompanions_ProtectsCanonicalRecord(t *testing.T) {
	// The selector matches two files of the same record with equal content:
	// a.png is canonical, a.txt is its duplicate, and a.txt's companions
	// include the canonical itself. Nothing of record "a" may go.
	c := testhelpers.NewMemCorpus(t).
		File("a.png", "same").
		File("a.txt", "same").
		File("a.gt.txt", "other").
		File("b.png", "same").
		File("b.txt", "b-text")

	d := New(Options{Fs: c.Fs})
	deleted, err := d.DeleteDuplicatesWithCompanions(c.Root, selector.Any())
	require.NoError(t, err)

	assert.Equal(t, []string{"b.png", "b.txt"}, c.Rel(deleted))
	assert.Equal(t, []string{"a.gt.txt", "a.png", "a.txt"}, c.Names())
}

func TestDeleteDuplicates_PartialFailure(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		File("1.txt", "a").
		File("2.txt", "a").
		File("3.txt", "a")
	faulty := testhelpers.NewFaultFs(c.Fs).FailRemove(c.Path("2.txt"))

	deleted, err := New(Options{Fs: faulty}).DeleteDuplicates(c.Root, txt)
	require.Error(t, err)

	assert.Equal(t, c.Paths("3.txt"), deleted)
	fileErrs := errors.FileErrors(err)
	require.Len(t, fileErrs, 1)
	assert.Equal(t, c.Path("2.txt"), fileErrs[0].Path)
	assert.Equal(t, errors.ErrorTypePermission, fileErrs[0].Type)
	assert.Equal(t, []string{"1.txt", "2.txt"}, c.Names())
}

func TestExpandWithCompanions_NoDiskChanges(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		Record("", "01", "img", ".png", ".txt").
		Record("", "02", "img", ".png", ".gt.txt")

	d := New(Options{Fs: c.Fs})
	res, err := d.Scan(c.Root, selector.MustParse("*.png"), nil)
	require.NoError(t, err)

	targets, err := d.ExpandWithCompanions(res)
	require.NoError(t, err)
	assert.Equal(t, []string{"02.gt.txt", "02.png"}, c.Rel(targets))
	assert.Len(t, c.Names(), 4)
}
