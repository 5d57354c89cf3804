// Package watch re-runs duplicate detection whenever a corpus changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/gtc/internal/debug"
	"github.com/standardbeagle/gtc/internal/dedupe"
	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/internal/selector"
)

// DefaultDebounce is the quiet period before a rescan
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher
type Options struct {
	Root     string
	Selector selector.Selector
	Exclude  []string
	Debounce time.Duration
	Detector *dedupe.Detector // nil builds one on the OS filesystem
	Logger   *debug.Logger
}

// Watcher monitors a corpus on the OS filesystem. The detector it drives
// must read the same filesystem.
type Watcher struct {
	opts Options

	statsMu sync.RWMutex
	stats   Stats
}

// Stats counts watcher activity
type Stats struct {
	Events    int64
	Errors    int64
	Scans     int64
	LastScan  time.Time
	Watched   int
	IsRunning bool
}

// New validates opts and fills defaults
func New(opts Options) (*Watcher, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("watch: root is required")
	}
	if opts.Selector == nil {
		opts.Selector = selector.Any()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Detector == nil {
		opts.Detector = dedupe.New(dedupe.Options{Exclude: opts.Exclude, Logger: opts.Logger})
	}
	return &Watcher{opts: opts}, nil
}

// Run scans once, then rescans after every burst of relevant changes and
// hands each result to onResult. It returns when ctx is done (nil) or when a
// scan fails on the root.
func (w *Watcher) Run(ctx context.Context, onResult func(*dedupe.Result)) error {
	if err := w.scan(ctx, onResult); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	if err := w.addWatches(fsw, w.opts.Root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", w.opts.Root, err)
	}

	w.setRunning(true)
	defer w.setRunning(false)

	trigger := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.processEvents(gctx, fsw, trigger)
	})
	g.Go(func() error {
		return w.debounce(gctx, trigger, onResult)
	})
	return g.Wait()
}

// Stats returns a snapshot of the counters
func (w *Watcher) Stats() Stats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}

func (w *Watcher) scan(ctx context.Context, onResult func(*dedupe.Result)) error {
	res, err := w.opts.Detector.Scan(w.opts.Root, w.opts.Selector, progress.FromContext(ctx, nil))
	if err != nil {
		return err
	}

	w.statsMu.Lock()
	w.stats.Scans++
	w.stats.LastScan = time.Now()
	w.statsMu.Unlock()

	if res.Cancelled {
		// shutting down; a partial result is not worth reporting
		return nil
	}
	w.opts.Logger.Watch("scan of %s: %d duplicate groups", w.opts.Root, len(res.Groups))
	if onResult != nil {
		onResult(res)
	}
	return nil
}

// addWatches adds a watch for every non-excluded directory under root
func (w *Watcher) addWatches(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip errors, continue walking
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Root && w.excluded(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.opts.Logger.Watch("failed to add watch for %s: %v", path, err)
			return nil
		}
		w.statsMu.Lock()
		w.stats.Watched++
		w.statsMu.Unlock()
		return nil
	})
}

func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.opts.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, rel+"/"); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context, fsw *fsnotify.Watcher, trigger chan<- struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(fsw, event) {
				select {
				case trigger <- struct{}{}:
				default: // a rescan is already pending
				}
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.statsMu.Lock()
			w.stats.Errors++
			w.statsMu.Unlock()
			w.opts.Logger.Watch("watcher error: %v", err)
		}
	}
}

// handleEvent reports whether the event can change the duplicate picture
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	w.statsMu.Lock()
	w.stats.Events++
	w.statsMu.Unlock()

	path := event.Name
	if w.excluded(path) {
		return false
	}

	info, err := os.Lstat(path)
	if err != nil {
		// Removed or renamed away; it may have been a selected file or a
		// directory full of them
		return event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	}

	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			// Files may land before the watch is in place, so rescan as well
			if err := w.addWatches(fsw, path); err != nil {
				w.opts.Logger.Watch("failed to watch new directory %s: %v", path, err)
			}
			return true
		}
		return false
	}

	if !info.Mode().IsRegular() || !w.opts.Selector.Match(info.Name()) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) debounce(ctx context.Context, trigger <-chan struct{}, onResult func(*dedupe.Result)) error {
	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			timer.Reset(w.opts.Debounce)
		case <-timer.C:
			if err := w.scan(ctx, onResult); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) setRunning(running bool) {
	w.statsMu.Lock()
	w.stats.IsRunning = running
	w.statsMu.Unlock()
}
