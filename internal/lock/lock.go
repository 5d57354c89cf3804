// Package lock keeps two mutating gtc processes off the same corpus.
//
// The lock is advisory: it guards gtc against itself, not against other
// programs editing the corpus. Lock files live under the OS temp directory,
// named after the absolute corpus root, so the corpus is never written to.
package lock

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/standardbeagle/gtc/internal/fingerprint"
)

// ErrLocked is returned when another process holds the corpus lock
var ErrLocked = stderrors.New("corpus is locked by another gtc process")

// Lock is a held corpus lock
type Lock struct {
	root string
	path string
	fl   *flock.Flock
}

// PathFor returns the lock file used for root
func PathFor(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve corpus root: %w", err)
	}
	name := "gtc-" + fingerprint.OfBytes([]byte(filepath.Clean(abs))).String() + ".lock"
	return filepath.Join(os.TempDir(), name), nil
}

// TryAcquire takes the lock for root without blocking
func TryAcquire(root string) (*Lock, error) {
	path, err := PathFor(root)
	if err != nil {
		return nil, err
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, root)
	}
	return &Lock{root: root, path: path, fl: fl}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
