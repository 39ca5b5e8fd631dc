package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/logger"
)

// Watcher watches the plugin config side-store for changes and triggers
// reload callbacks, so edited credentials reach plugins without a restart.
type Watcher struct {
	settings       *Settings
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	done           chan struct{}
}

// ReloadCallback is called after the side-store has been re-read from disk.
type ReloadCallback func(*Settings) error

// NewWatcher creates a watcher over the settings' plugin config file.
func NewWatcher(settings *Settings) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	path := settings.pluginConfigPath()
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watch plugin config file %s", path)
	}

	return &Watcher{
		settings:       settings,
		watcher:        fw,
		debouncePeriod: 500 * time.Millisecond, // Debounce rapid file changes
		done:           make(chan struct{}),
	}, nil
}

// OnReload registers a callback to be called after each reload.
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Plugin config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of write events into a single reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	if err := w.settings.ReloadPluginConfigs(); err != nil {
		logger.Errorw("Failed to reload plugin configs", "error", err)
		return
	}

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(w.settings); err != nil {
			logger.Errorw("Plugin config reload callback failed", "error", err)
		}
	}
	logger.Infow("Plugin configs reloaded", "callbacks", len(callbacks))
}
