package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/logging"
)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     logrus.FieldLogger
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors replacing the file by rename are seen too.
func NewWatcher(path string, log logrus.FieldLogger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.EInvalidConfig, "failed to create config watcher", err)
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		// Best-effort close; the Add error is what matters.
		_ = w.Close()
		return nil, errors.WrapWithDetails(errors.EInvalidConfig, "failed to watch config", err, map[string]string{"path": path})
	}
	return &Watcher{path: path, watcher: w, log: logging.OrDiscard(log)}, nil
}

// Run calls onChange with freshly loaded settings after every change to the
// file until ctx ends. A file that fails to load or validate is logged and
// skipped; the caller keeps its previous settings.
func (w *Watcher) Run(ctx context.Context, onChange func(Settings)) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.log.WithError(err).Debug("failed to close config watcher")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			s, err := Load(w.path)
			if err != nil {
				w.log.WithError(err).WithField("path", w.path).Warn("ignoring config change")
				continue
			}
			w.log.WithField("path", w.path).Info("config reloaded")
			onChange(s)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("config watcher error")
		}
	}
}
