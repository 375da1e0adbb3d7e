package capability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
)

const defaultWatchDebounce = 250 * time.Millisecond

// ChangeFunc is called with the external id of a device whose markers
// changed. An empty id means the main device.
type ChangeFunc func(externalID string)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Root is the marker directory of the main device.
	Root string

	OnChange ChangeFunc

	// Debounce coalesces bursts of events per device. Zero uses the default.
	Debounce time.Duration
}

// Watcher reports marker files created or removed outside the mapper.
type Watcher struct {
	root     string
	onChange ChangeFunc
	debounce time.Duration
	logger   Logger

	// children holds the child directories being watched. Only the Run
	// goroutine touches it.
	children map[string]bool

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher. Call Run to start it.
func NewWatcher(opts WatcherOptions) *Watcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	return &Watcher{
		root:     filepath.Clean(opts.Root),
		onChange: opts.OnChange,
		debounce: debounce,
		logger:   noopLogger{},
		children: make(map[string]bool),
		timers:   make(map[string]*time.Timer),
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	w.logger = logger
}

// Run watches the marker root and every child directory until ctx is done.
//
// Setup failures are returned as infrastructure errors. Errors reported by
// the watch itself are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.root, dirPermissions); err != nil {
		return conversion.WatchFailure(err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return conversion.WatchFailure(err)
	}
	defer func() {
		_ = fsw.Close() //nolint:errcheck // shutting down
		w.stopTimers()
	}()

	if err := fsw.Add(w.root); err != nil {
		return conversion.WatchFailure(err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return conversion.WatchFailure(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(fsw, filepath.Join(w.root, e.Name()))
		}
	}

	w.logger.Info("watching operation markers", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("operation marker watch failed", "error", conversion.WatchFailure(err))
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	name := filepath.Clean(event.Name)
	if strings.HasPrefix(filepath.Base(name), ".") {
		return
	}

	parent := filepath.Dir(name)
	switch {
	case parent == w.root:
		child := filepath.Base(name)
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			if w.children[child] {
				// Child device directory gone.
				delete(w.children, child)
				w.schedule(child)
				return
			}
		}
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(name); err == nil && info.IsDir() {
				// New child device directory.
				w.addDir(fsw, name)
				w.schedule(child)
				return
			}
		}
		w.schedule("")
	case filepath.Dir(parent) == w.root:
		w.schedule(filepath.Base(parent))
	}
}

func (w *Watcher) addDir(fsw *fsnotify.Watcher, dir string) {
	w.children[filepath.Base(dir)] = true
	if err := fsw.Add(dir); err != nil {
		w.logger.Warn("cannot watch child marker directory", "dir", dir, "error", conversion.WatchFailure(err))
	}
}

func (w *Watcher) schedule(externalID string) {
	if w.onChange == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[externalID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timers[externalID] == t {
			delete(w.timers, externalID)
		}
		w.mu.Unlock()
		w.onChange(externalID)
	})
	w.timers[externalID] = t
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}
