package catalog

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/pulse/pkg/observability"
)

// Watch reloads the overlay file whenever it changes on disk, until the
// context is cancelled. The watch is on the parent directory rather
// than the file itself so editors that replace the file (write to temp,
// rename over) don't silently drop the watch.
func (c *Catalog) Watch(ctx context.Context, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	target, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, _ := filepath.Abs(event.Name)
				if name != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := c.LoadFile(path); err != nil {
					// Keep serving the last good catalog.
					logger.WithError(err).WithField("path", path).Error("catalog reload failed")
					continue
				}
				logger.WithField("path", path).Info("catalog reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("catalog watcher error")
			}
		}
	}()

	return nil
}
