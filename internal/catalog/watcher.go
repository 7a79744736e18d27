package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a content file into a Catalog whenever it changes on disk.
// The parent directory is watched so editors that save by rename are seen.
type Watcher struct {
	catalog  *Catalog
	path     string
	debounce time.Duration
	logger   *zap.Logger

	// reloaded, when set, is called after every reload attempt.
	reloaded func(error)
}

// NewWatcher prepares a watcher for path. Call Run to start it.
func NewWatcher(c *Catalog, path string, logger *zap.Logger) *Watcher {
	return &Watcher{
		catalog:  c,
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. Invalid content is logged and the
// previous content stays live.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("content watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.logger.Info("watching content file", zap.String("path", w.path))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("content watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	site, err := ParseFile(w.path)
	if err != nil {
		w.logger.Error("content reload failed, keeping previous content", zap.String("path", w.path), zap.Error(err))
	} else {
		w.catalog.Replace(site)
		w.logger.Info("content reloaded", zap.String("path", w.path), zap.Int("projects", len(site.Projects)))
	}
	if w.reloaded != nil {
		w.reloaded(err)
	}
}
