package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/kroegman/neartrip/internal/logger"
)

// Watcher reloads the Store whenever its config file changes on disk.
// Editors replace files by rename, so the watch covers the directory and
// filters events down to the config path.
type Watcher struct {
	store *Store
	log   logger.Logger
	fsw   *fsnotify.Watcher
	done  chan struct{}
}

// NewWatcher starts watching the store's config file. Reload failures
// are logged and the previous snapshot stays live.
func NewWatcher(store *Store, log logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(store.Path())); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{store: store, log: log, fsw: fsw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	target := filepath.Clean(w.store.Path())
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := w.store.Reload(); err != nil {
				w.log.Warn("config file changed but reload failed; keeping previous configuration",
					logger.Error(err))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", logger.Error(err))
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
