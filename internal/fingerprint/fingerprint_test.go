package fingerprint

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf_Deterministic(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/c/a.png", []byte("test1"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/c/b.png", []byte("test1"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/c/c.png", []byte("test2"), 0644))

	a, err := Of(fsys, "/c/a.png")
	require.NoError(t, err)
	b, err := Of(fsys, "/c/b.png")
	require.NoError(t, err)
	c, err := Of(fsys, "/c/c.png")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, OfBytes([]byte("test1")), a)
}

func TestOf_StreamsLargeContent(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789abcdef"), 1<<16)
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/c/big.png", content, 0644))

	got, err := Of(fsys, "/c/big.png")
	require.NoError(t, err)
	assert.Equal(t, OfBytes(content), got)
}

func TestOf_MissingFile(t *testing.T) {
	_, err := Of(afero.NewMemMapFs(), "/c/missing.png")
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("i/o error") }

func TestOfReader_Error(t *testing.T) {
	_, err := OfReader(io.MultiReader(bytes.NewReader([]byte("partial")), failingReader{}))
	assert.EqualError(t, err, "i/o error")
}

func TestString(t *testing.T) {
	assert.Equal(t, "0000000000000001", Fingerprint(1).String())
	assert.Len(t, OfBytes([]byte("anything")).String(), 16)
	// xxHash64 of the empty input with seed 0
	assert.Equal(t, "ef46db3751d8e999", OfBytes(nil).String())
}
