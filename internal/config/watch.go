package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads configuration when the config file changes on disk,
// so active sessions pick up new triggers, thresholds, and API keys
// without a restart.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(*Config)
	done     chan struct{}
	closed   bool

	// Editors write config files with multiple events in quick
	// succession; reloads within debounce of each other coalesce.
	debounce time.Duration
	lastLoad time.Time
}

// NewWatcher watches the config file and invokes onChange with the
// freshly loaded configuration after each modification.
func NewWatcher(logger zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files by
	// rename, which drops a file-level watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		logger:   logger.With().Str("component", "config-watch").Logger(),
		onChange: onChange,
		done:     make(chan struct{}),
		debounce: 250 * time.Millisecond,
	}

	go w.loop(filepath.Base(path))
	return w, nil
}

func (w *Watcher) loop(fileName string) {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != fileName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Config watch error")
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if time.Since(w.lastLoad) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.lastLoad = time.Now()
	w.mu.Unlock()

	cfg, err := Load()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Config reload failed, keeping previous configuration")
		return
	}

	w.logger.Info().Msg("Configuration reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops watching. Safe to call multiple times.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.watcher.Close()
}
