package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/stageflow/logging"
	"github.com/hupe1980/stageflow/permission"
)

// DefaultDebounce is how long the watcher waits after the last filesystem
// event before reloading, collapsing editor save bursts into one reload.
const DefaultDebounce = 100 * time.Millisecond

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce collapses bursts of filesystem events into one reload.
	// Defaults to DefaultDebounce.
	Debounce time.Duration

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// OnReload, when set, is called after every reload attempt with its
	// outcome.
	OnReload func(err error)
}

// Watcher keeps a permission checker synchronized with a roles file on
// disk. It watches the file's parent directory because editors typically
// replace files on save rather than writing them in place, which would
// otherwise drop the watch.
type Watcher struct {
	path    string
	checker *permission.Checker
	opts    WatcherOptions

	mu      sync.RWMutex
	running bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the given roles file. Nothing is
// loaded or watched until Start.
func NewWatcher(path string, checker *permission.Checker, optFns ...func(o *WatcherOptions)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles path: %w", err)
	}

	opts := WatcherOptions{
		Debounce: DefaultDebounce,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Watcher{
		path:    abs,
		checker: checker,
		opts:    opts,
	}, nil
}

// Start loads and applies the roles file once, then begins watching it
// for changes. A file that fails to load at startup is an error; later
// failures are logged and the previous tables stay in effect.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	rs, err := LoadRoles(w.path)
	if err != nil {
		return err
	}
	if err := rs.Apply(w.checker); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	w.watcher = fsw
	w.done = make(chan struct{})
	w.running = true

	go w.loop(fsw, w.done)

	w.opts.Logger.Info("config.watcher.started", "path", w.path, "debounce", w.opts.Debounce)

	return nil
}

// Stop ends watching. Safe to call twice; a reload already scheduled by
// the debounce timer may still fire once after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	close(w.done)
	_ = w.watcher.Close()
	w.watcher = nil
	w.running = false

	w.opts.Logger.Info("config.watcher.stopped", "path", w.path)
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	var debounce *time.Timer

	for {
		select {
		case <-done:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}

			// The parent directory is watched, so unrelated siblings
			// show up here too.
			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(w.opts.Debounce, w.reload)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Error("config.watcher.error", "path", w.path, "error", err)
		}
	}
}

// reload re-applies the roles file. Failures leave the checker's current
// tables untouched.
func (w *Watcher) reload() {
	if !w.Running() {
		return
	}

	err := w.apply()
	if err != nil {
		w.opts.Logger.Error("config.roles.reload_failed", "path", w.path, "error", err)
	} else {
		w.opts.Logger.Info("config.roles.reloaded", "path", w.path)
	}

	if w.opts.OnReload != nil {
		w.opts.OnReload(err)
	}
}

func (w *Watcher) apply() error {
	rs, err := LoadRoles(w.path)
	if err != nil {
		return err
	}
	return rs.Apply(w.checker)
}
