package confloader

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/keymesh-go/internal/server/config"
)

// ErrNoConfigFile is returned when a Watcher is created from a Loader
// that has no configuration file to watch.
var ErrNoConfigFile = errors.New("confloader: loader has no config file to watch")

// ReloadFunc receives the freshly loaded configuration after the watched
// file changes.
type ReloadFunc func(*config.ServerConfig)

// Watcher re-reads the server configuration whenever its file changes and
// hands the verified result to a reload callback. A change that fails to
// load (syntax error, failed verification) is logged and dropped, keeping
// the last good configuration in effect.
//
// The containing directory is watched rather than the file itself, to
// survive editor-style replace-by-rename; events for sibling files are
// ignored.
type Watcher struct {
	loader   *Loader
	onReload ReloadFunc
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	base    string

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher over the loader's config file. Call Start
// to begin watching.
func NewWatcher(loader *Loader, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	if loader.ConfigFile() == "" {
		return nil, ErrNoConfigFile
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		loader:   loader,
		onReload: onReload,
		logger:   slog.Default(),
		watcher:  fsw,
		base:     filepath.Base(loader.ConfigFile()),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start registers the directory watch and launches the event loop.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.loader.ConfigFile())
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.logger.Debug("watching config file", "dir", dir, "file", w.base)

	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Base(event.Name) != w.base {
				continue
			}
			w.logger.Debug("config file changed", "file", event.Name, "op", event.Op.String())
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// reload re-runs the loader and delivers the result. Load failures leave
// the previous configuration in effect.
func (w *Watcher) reload() {
	cfg, err := w.loader.LoadServerConfig()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration", "error", err)
		return
	}

	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
