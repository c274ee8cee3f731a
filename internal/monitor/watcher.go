package monitor

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watcher wraps fsnotify with recursive directory registration.
type watcher struct {
	fw     *fsnotify.Watcher
	filter *Filter
	logger *zap.Logger
}

func newWatcher(filter *Filter, logger *zap.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &watcher{fw: fw, filter: filter, logger: logger}, nil
}

// addTree registers root and every non-ignored directory below it. New
// directories created later are registered from the event loop.
func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.IgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.logger.Debug("watching directory", zap.String("path", path))
		return nil
	})
}

func (w *watcher) close() error {
	return w.fw.Close()
}
