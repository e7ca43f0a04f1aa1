// Package watcher provides debounced directory-change notifications for the
// scanning pipeline.
package watcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a directory must stay quiet before its pending
// change notification fires. File downloads produce bursts of write events;
// the debounce coalesces each burst into one callback.
const DefaultDebounce = 250 * time.Millisecond

// ChangeFunc receives the path of a watched directory whose contents changed.
// It runs on the watcher goroutine and must not block on I/O; hand expensive
// work to a task pool.
type ChangeFunc func(dir string)

// Config holds configuration for the DirectoryWatcher.
type Config struct {
	OnChange ChangeFunc
	Debounce time.Duration
	Logger   *logrus.Logger
}

// DirectoryWatcher monitors a set of directories and reports, per directory,
// that something inside it changed. It watches directories only, never
// individual files; which files changed is for the scanner to rediscover.
type DirectoryWatcher struct {
	fsw      *fsnotify.Watcher
	onChange ChangeFunc
	debounce time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	dirs   []string
	timers map[string]*time.Timer

	done chan struct{}
}

// New creates a DirectoryWatcher. The change callback is required.
func New(cfg Config) (*DirectoryWatcher, error) {
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("change callback cannot be nil")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &DirectoryWatcher{
		fsw:      fsw,
		onChange: cfg.OnChange,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Add registers dir for watching. Adding the same directory twice is a no-op.
func (w *DirectoryWatcher) Add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, existing := range w.dirs {
		if existing == dir {
			return nil
		}
	}

	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.dirs = append(w.dirs, dir)
	w.logger.WithField("dir", dir).Debug("Watching directory")
	return nil
}

// Remove stops watching dir. Removing an unwatched directory is a no-op.
func (w *DirectoryWatcher) Remove(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, existing := range w.dirs {
		if existing != dir {
			continue
		}
		if err := w.fsw.Remove(dir); err != nil {
			return fmt.Errorf("unwatching %s: %w", dir, err)
		}
		w.dirs = append(w.dirs[:i], w.dirs[i+1:]...)
		if timer, ok := w.timers[dir]; ok {
			timer.Stop()
			delete(w.timers, dir)
		}
		return nil
	}
	return nil
}

// Directories returns the currently watched directory paths.
func (w *DirectoryWatcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, len(w.dirs))
	copy(out, w.dirs)
	return out
}

// Start begins delivering change notifications in a background goroutine.
func (w *DirectoryWatcher) Start() {
	go w.loop()
}

// Stop shuts down the watcher and cancels pending debounced notifications.
func (w *DirectoryWatcher) Stop() error {
	close(w.done)

	w.mu.Lock()
	for dir, timer := range w.timers {
		timer.Stop()
		delete(w.timers, dir)
	}
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *DirectoryWatcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleNotify(w.watchedParent(event.Name))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Directory watcher error")
		}
	}
}

// watchedParent maps an event path back to the watched directory it belongs
// to. Events carry the changed file's path, not the watch root.
func (w *DirectoryWatcher) watchedParent(name string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, dir := range w.dirs {
		if name == dir || isUnder(name, dir) {
			return dir
		}
	}
	return ""
}

// scheduleNotify arms (or re-arms) the per-directory debounce timer.
func (w *DirectoryWatcher) scheduleNotify(dir string) {
	if dir == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[dir]; ok {
		timer.Stop()
	}
	w.timers[dir] = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.logger.WithField("dir", dir).Debug("Directory changed")
		w.onChange(dir)
	})
}

func isUnder(name, dir string) bool {
	if len(name) <= len(dir) {
		return false
	}
	return name[:len(dir)] == dir && (name[len(dir)] == '/' || name[len(dir)] == '\\')
}
