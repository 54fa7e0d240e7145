package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	xflog "github.com/inkframe/inkframe/internal/log"
)

// Watch re-runs discovery whenever the plugins root changes on disk. Events
// are debounced so a plugin being unpacked does not trigger a rediscovery per
// file. Returns after the watcher is installed; the loop runs until ctx is
// cancelled.
func (r *Registry) Watch(ctx context.Context, root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch plugins root: %w", err)
	}

	r.logger.Info().
		Str(xflog.FieldEvent, "registry.watcher_started").
		Str(xflog.FieldPath, root).
		Msg("watching plugins root for changes")

	go r.watchLoop(ctx, watcher, root)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, root string) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	defer func() {
		if err := watcher.Close(); err != nil {
			r.logger.Debug().Err(err).Msg("close plugins watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Str(xflog.FieldEvent, "registry.watcher_stopped").Msg("plugins watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := r.Discover(root); err != nil {
					r.logger.Error().
						Err(err).
						Str(xflog.FieldEvent, "registry.rediscover_failed").
						Msg("plugin rediscovery failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn().Err(err).Str(xflog.FieldEvent, "registry.watcher_error").Msg("plugins watcher error")
		}
	}
}
