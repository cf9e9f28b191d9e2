package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/easel-ai/easel/internal/logging"
)

// Watcher reloads a config file when it changes on disk and hands the new
// configuration to a callback. Only hot-applicable settings (log level)
// should be acted on; bind address and data directory changes need a
// restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	onLoad  func(*Config)
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// NewWatcher creates a watcher for one config file. Returns nil, nil when
// the file's directory cannot be watched.
func NewWatcher(path string, onLoad func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files on save, which drops a
	// watch on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		logging.Debug().Err(err).Str("path", path).Msg("config watch disabled")
		return nil, nil
	}

	return &Watcher{
		watcher: w,
		path:    path,
		onLoad:  onLoad,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for config changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
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
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg := &Config{}
	if err := loadConfigFile(w.path, cfg, filepath.Dir(w.path)); err != nil {
		logging.Warn().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous settings")
		return
	}
	applyDefaults(cfg)
	logging.Info().Str("path", w.path).Msg("config reloaded")
	w.onLoad(cfg)
}

// Stop stops the watcher and waits for the run loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.mu.Unlock()

	close(w.stopCh)
	_ = w.watcher.Close()
	<-w.doneCh
}
