package testhelpers

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// Corpus builds record directories on an afero filesystem.
// Usage:
//
//	c := testhelpers.NewCorpus(t, afero.NewMemMapFs(), "/corpus").
//	    File("02.png", "image-a").
//	    File("02.txt", "text-a")
//	snapshot := c.Snapshot()
type Corpus struct {
	t    *testing.T
	Fs   afero.Fs
	Root string
}

// NewCorpus creates root on fsys
func NewCorpus(t *testing.T, fsys afero.Fs, root string) *Corpus {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(root, 0755))
	return &Corpus{t: t, Fs: fsys, Root: root}
}

// NewMemCorpus creates a corpus rooted at /corpus on a fresh in-memory filesystem
func NewMemCorpus(t *testing.T) *Corpus {
	return NewCorpus(t, afero.NewMemMapFs(), "/corpus")
}

// NewOsCorpus creates a corpus in a test temp dir on the real filesystem
func NewOsCorpus(t *testing.T) *Corpus {
	return NewCorpus(t, afero.NewOsFs(), t.TempDir())
}

// File writes rel (slash separated, relative to root) with content
func (c *Corpus) File(rel, content string) *Corpus {
	c.t.Helper()
	path := c.Path(rel)
	require.NoError(c.t, c.Fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(c.t, afero.WriteFile(c.Fs, path, []byte(content), 0644))
	return c
}

// Record writes one record: stem plus one file per suffix, all with content
func (c *Corpus) Record(dir, stemName, content string, suffixes ...string) *Corpus {
	c.t.Helper()
	for _, s := range suffixes {
		c.File(filepath.ToSlash(filepath.Join(dir, stemName+s)), content)
	}
	return c
}

// Dir creates an empty directory
func (c *Corpus) Dir(rel string) *Corpus {
	c.t.Helper()
	require.NoError(c.t, c.Fs.MkdirAll(c.Path(rel), 0755))
	return c
}

// Path converts a root-relative slash path to a filesystem path
func (c *Corpus) Path(rel string) string {
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// Paths converts several root-relative paths
func (c *Corpus) Paths(rels ...string) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = c.Path(r)
	}
	return out
}

// Snapshot maps every regular file (root-relative, slash separated) to its content
func (c *Corpus) Snapshot() map[string]string {
	c.t.Helper()
	out := make(map[string]string)
	err := afero.Walk(c.Fs, c.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := afero.ReadFile(c.Fs, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.Root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(c.t, err)
	return out
}

// Names lists the root-relative regular file paths, sorted
func (c *Corpus) Names() []string {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for n := range snap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Rel converts absolute paths back to sorted root-relative slash paths
func (c *Corpus) Rel(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(c.Root, p)
		require.NoError(c.t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

// RecordsByStem groups a snapshot into stem -> {suffix: content}, per directory.
// Keys are "dir/stem" with dir "." for the root.
func RecordsByStem(snapshot map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for rel, content := range snapshot {
		dir, name := filepath.Split(rel)
		dir = strings.TrimSuffix(dir, "/")
		if dir == "" {
			dir = "."
		}
		stemName, suffix := name, ""
		if i := strings.Index(name, "."); i >= 0 {
			stemName, suffix = name[:i], name[i:]
		}
		key := dir + "/" + stemName
		if out[key] == nil {
			out[key] = make(map[string]string)
		}
		out[key][suffix] = content
	}
	return out
}
