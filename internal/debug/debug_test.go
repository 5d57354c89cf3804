package debug

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)

	l.Log("TEST", "Hello %s", "World")

	output := buf.String()
	assert.Equal(t, "[DEBUG:TEST] Hello World\n", output)
}

func TestLogger_ComponentHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)

	l.Scan("walk %s", "/corpus")
	l.Dedupe("group %d", 1)
	l.Renumber("move %s -> %s", "04", "02")
	l.Watch("event")
	l.MCP("tool %s", "renumber")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "[DEBUG:SCAN] walk /corpus", lines[0])
	assert.Equal(t, "[DEBUG:DEDUPE] group 1", lines[1])
	assert.Equal(t, "[DEBUG:RENUMBER] move 04 -> 02", lines[2])
	assert.Equal(t, "[DEBUG:WATCH] event", lines[3])
	assert.Equal(t, "[DEBUG:MCP] tool renumber", lines[4])
}

func TestLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Log("TEST", "should not appear")
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled())

	assert.False(t, New(nil, true).Enabled())
	assert.False(t, Discard().Enabled())
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Log("TEST", "nothing")
		l.Scan("nothing")
		_ = l.Close()
	})
	assert.False(t, l.Enabled())
}

func TestEnvEnabled(t *testing.T) {
	original := EnableDebug
	defer func() { EnableDebug = original }()

	EnableDebug = "false"
	t.Setenv("GTC_DEBUG", "")
	assert.False(t, EnvEnabled())

	t.Setenv("GTC_DEBUG", "1")
	assert.True(t, EnvEnabled())

	t.Setenv("GTC_DEBUG", "true")
	assert.True(t, EnvEnabled())

	t.Setenv("GTC_DEBUG", "")
	EnableDebug = "true"
	assert.True(t, EnvEnabled())

	EnableDebug = "invalid"
	assert.False(t, EnvEnabled())
}

func TestOpenFile(t *testing.T) {
	l, path, err := OpenFile()
	require.NoError(t, err)
	defer os.Remove(path)

	l.Renumber("written to %s", "file")
	require.NoError(t, l.Close())
	assert.False(t, l.Enabled())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[DEBUG:RENUMBER] written to file")
}
