package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is the polling interval of a [Watcher].
const DefaultWatchInterval = 5 * time.Second

// Watcher polls a config file and calls a callback when its content changes
// and still validates. Invalid edits are logged and the previous config kept.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	log      *slog.Logger

	// reloadMu serialises reloads from the poll loop and [Watcher.Reload].
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	seen    fileState

	done     chan struct{}
	stopOnce sync.Once
}

// fileState identifies one version of the config file.
type fileState struct {
	modified time.Time
	sum      [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger used for reload events. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher loads the config at path and starts polling it in a background
// goroutine. onChange may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.seen = cfg, st

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Reload re-reads the file immediately, ignoring the modification time. It
// reports whether a changed, valid config was applied.
func (w *Watcher) Reload() (bool, error) {
	return w.reload(true)
}

func (w *Watcher) loop() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
			if _, err := w.reload(false); err != nil {
				w.log.Warn("config watcher: reload failed", "path", w.path, "err", err)
			}
		}
	}
}

// reload applies the file if its content hash changed. Unless force is set a
// matching modification time short-circuits the read.
func (w *Watcher) reload(force bool) (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			return false, err
		}
		w.mu.Lock()
		unchanged := info.ModTime().Equal(w.seen.modified)
		w.mu.Unlock()
		if unchanged {
			return false, nil
		}
	}

	cfg, st, err := w.read()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if st.sum == w.seen.sum {
		w.seen.modified = st.modified
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.seen = cfg, st
	w.mu.Unlock()

	w.log.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

// read loads and validates the file and returns it with its state.
func (w *Watcher) read() (*Config, fileState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, fileState{modified: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
