package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/gtc/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// Logger writes component-tagged debug lines. Engine components receive one
// through their options instead of reaching for a package-level writer.
// A nil *Logger discards everything.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	file    *os.File
	enabled bool
}

// New creates a logger writing to w when enabled is true
func New(w io.Writer, enabled bool) *Logger {
	return &Logger{out: w, enabled: enabled && w != nil}
}

// Discard returns a logger that never writes
func Discard() *Logger {
	return &Logger{}
}

// FromEnv creates a logger enabled by the build flag or GTC_DEBUG=1|true
func FromEnv(w io.Writer) *Logger {
	return New(w, EnvEnabled())
}

// EnvEnabled reports whether debug output was requested at build or run time
func EnvEnabled() bool {
	// Check build flag first
	if EnableDebug == "true" {
		return true
	}

	// Allow runtime override via environment variable
	v := os.Getenv("GTC_DEBUG")
	return v == "1" || v == "true"
}

// OpenFile creates a logger that appends to a timestamped file under
// the OS temp dir. Returns the path to the log file.
// Call Close when done to ensure the file is properly closed.
func OpenFile() (*Logger, string, error) {
	logDir := filepath.Join(os.TempDir(), "gtc-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	return &Logger{out: file, file: file, enabled: true}, logPath, nil
}

// Close closes the backing file if the logger owns one
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.out = nil
		l.enabled = false
		return err
	}
	return nil
}

// Enabled returns true if the logger writes anywhere
func (l *Logger) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled && l.out != nil
}

// Log provides structured debug logging with component names
func (l *Logger) Log(component, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || l.out == nil {
		return
	}
	fmt.Fprintf(l.out, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// Scan logs corpus walking
func (l *Logger) Scan(format string, args ...interface{}) {
	l.Log("SCAN", format, args...)
}

// Dedupe logs duplicate detection and deletion
func (l *Logger) Dedupe(format string, args ...interface{}) {
	l.Log("DEDUPE", format, args...)
}

// Renumber logs rename planning and execution
func (l *Logger) Renumber(format string, args ...interface{}) {
	l.Log("RENUMBER", format, args...)
}

// Watch logs watcher events
func (l *Logger) Watch(format string, args ...interface{}) {
	l.Log("WATCH", format, args...)
}

// MCP logs tool calls. The MCP transport owns stdout, so callers must point
// this logger at a file or stderr.
func (l *Logger) MCP(format string, args ...interface{}) {
	l.Log("MCP", format, args...)
}
