package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gtc/internal/fingerprint"
)

func TestPathFor(t *testing.T) {
	root := t.TempDir()

	a, err := PathFor(root)
	require.NoError(t, err)
	b, err := PathFor(filepath.Join(root, "sub", ".."))
	require.NoError(t, err)
	c, err := PathFor(filepath.Join(root, "other"))
	require.NoError(t, err)

	assert.Equal(t, a, b, "equivalent roots share a lock")
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, root, "lock file lives outside the corpus")

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	want := "gtc-" + fingerprint.OfBytes([]byte(filepath.Clean(abs))).String() + ".lock"
	assert.Equal(t, want, filepath.Base(a))
}

func TestTryAcquire(t *testing.T) {
	root := t.TempDir()

	held, err := TryAcquire(root)
	require.NoError(t, err)

	// flock locks are per open file description, so a second handle
	// in the same process conflicts
	_, err = TryAcquire(root)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, held.Release())

	again, err := TryAcquire(root)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestRelease_Nil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
