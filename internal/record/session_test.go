package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gtc/testhelpers"
)

func sessionCorpus(t *testing.T) *testhelpers.Corpus {
	return testhelpers.NewMemCorpus(t).
		Record("", "0001", "x", ".png").            // no transcript
		Record("", "0002", "x", ".png", ".gt.txt"). // finished
		Record("", "0003", "x", ".png", ".txt").    // unfinished
		Record("", "0004", "x", ".png", ".gt.txt"). // finished
		Record("", "0005", "x", ".png", ".txt")     // unfinished
}

func TestNewSession_SelectsFirstTranscribed(t *testing.T) {
	c := sessionCorpus(t)

	s, err := NewSession(c.Fs, c.Root, png)
	require.NoError(t, err)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "0002", cur.Stem)
	assert.Len(t, s.Records(), 5)
	assert.Equal(t, c.Root, s.Dir())
}

func TestSession_Navigation(t *testing.T) {
	c := sessionCorpus(t)
	s, err := NewSession(c.Fs, c.Root, png)
	require.NoError(t, err)

	r, ok := s.Next(OnlyUnfinished)
	require.True(t, ok)
	assert.Equal(t, "0003", r.Stem)

	r, ok = s.Next(Any)
	require.True(t, ok)
	assert.Equal(t, "0004", r.Stem)

	r, ok = s.Next(OnlyUnfinished)
	require.True(t, ok)
	assert.Equal(t, "0005", r.Stem)

	_, ok = s.Next(Any)
	assert.False(t, ok)
	cur, _ := s.Current()
	assert.Equal(t, "0005", cur.Stem, "position is kept at the end")

	r, ok = s.Previous(OnlyUnfinished)
	require.True(t, ok)
	assert.Equal(t, "0003", r.Stem)

	r, ok = s.Previous(Any)
	require.True(t, ok)
	assert.Equal(t, "0002", r.Stem)

	_, ok = s.Previous(Any)
	assert.False(t, ok, "0001 has no transcript")
}

func TestSession_SeekAndRefresh(t *testing.T) {
	c := sessionCorpus(t)
	s, err := NewSession(c.Fs, c.Root, png)
	require.NoError(t, err)

	require.True(t, s.Seek("0003"))
	assert.False(t, s.Seek("9999"))

	_, err = Delete(c.Fs, c.Path("0003.png"))
	require.NoError(t, err)
	require.NoError(t, s.Refresh())

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "0004", cur.Stem)
	assert.Len(t, s.Records(), 4)
}

func TestSession_Empty(t *testing.T) {
	c := testhelpers.NewMemCorpus(t)
	s, err := NewSession(c.Fs, c.Root, png)
	require.NoError(t, err)

	_, ok := s.Current()
	assert.False(t, ok)
	_, ok = s.Previous(Any)
	assert.False(t, ok)
	require.NoError(t, s.Refresh())
}
