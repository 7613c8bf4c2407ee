package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before the
// configuration is reloaded
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the previous and the reloaded configuration
type ChangeFunc func(prev, next *Config)

// Watcher keeps a configuration file loaded and reloads it when the file
// changes on disk. A reload that fails to parse or validate keeps the
// previous configuration.
type Watcher struct {
	path     string
	loader   *Loader
	logger   *slog.Logger
	debounce time.Duration

	current atomic.Pointer[Config]

	mu       sync.Mutex
	onChange []ChangeFunc

	fsw      *fsnotify.Watcher
	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads path and prepares a watcher for it. Nothing is watched
// until Start.
func NewWatcher(path string, loader *Loader, logger *slog.Logger) (*Watcher, error) {
	if _, err := formatOf(path); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigWatchError, err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		loader:   loader,
		logger:   logger.With("config_file", path),
		debounce: DefaultDebounce,
		fsw:      fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.current.Store(cfg)
	return w, nil
}

// SetDebounce changes the reload debounce period. It must be called before
// Start.
func (w *Watcher) SetDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Current returns the configuration last loaded successfully.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// OnChange registers fn to run after every successful reload. Callbacks run
// on the watcher goroutine, one at a time.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching. The parent directory is watched so that editors
// which replace the file are followed.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigWatchError, err)
	}
	w.started.Store(true)
	go w.run()
	return nil
}

// Stop ends watching and waits for the watcher goroutine. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
		if w.started.Load() {
			<-w.done
		}
	})
	return err
}

// Reload loads the file now and notifies the callbacks.
func (w *Watcher) Reload() error {
	next, err := w.loader.LoadFromFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	prev := w.current.Swap(next)
	w.logger.Info("configuration reloaded")

	w.mu.Lock()
	fns := append([]ChangeFunc(nil), w.onChange...)
	w.mu.Unlock()

	for _, fn := range fns {
		w.notify(fn, prev, next)
	}
	return nil
}

func (w *Watcher) notify(fn ChangeFunc, prev, next *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("config change callback panicked", "panic", r)
		}
	}()
	fn(prev, next)
}

// run collapses bursts of file events into one reload per quiet period.
func (w *Watcher) run() {
	defer close(w.done)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.logger.Warn("config file was removed or renamed")
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := w.Reload(); err != nil {
				w.logger.Warn("keeping previous config", "error", err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}
