package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads configuration when the config file changes on disk.
//
// Only the privacy exclusion list is applied live; everything else requires
// a restart. The watcher invokes onReload with the freshly loaded config
// after every successful reload.
type Watcher struct {
	path     string
	onReload func(*Config)
	logger   *zap.Logger

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	running bool
	doneCh  chan struct{}
}

// NewWatcher creates a config file watcher. onReload must not be nil.
func NewWatcher(path string, onReload func(*Config), logger *zap.Logger) (*Watcher, error) {
	if onReload == nil {
		return nil, fmt.Errorf("onReload callback is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger,
	}, nil
}

// Start begins watching the config file's directory. Watching the directory
// rather than the file survives editors that replace the file on save.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.fw = fw
	w.running = true
	w.doneCh = make(chan struct{})

	go w.run()

	w.logger.Info("config watcher started", zap.String("path", w.path))
	return nil
}

// Stop halts the watcher and waits for the goroutine to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	fw := w.fw
	done := w.doneCh
	w.mu.Unlock()

	fw.Close()
	<-done
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadWithFile(w.path)
	if err != nil {
		// Keep running with the previous config.
		w.logger.Warn("config reload failed", zap.Error(err))
		return
	}
	w.logger.Info("config reloaded",
		zap.Int("excluded_apps", len(cfg.Capture.ExcludedApps)))
	w.onReload(cfg)
}
