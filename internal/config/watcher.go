package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch monitors the config file and invokes onChange with the re-read
// config after each write. Only hot-tunable settings (log level) should be
// applied by the callback; structural settings need a restart. If the
// watcher cannot be created the config simply stays fixed for the process
// lifetime.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func(*Config)) {
	if path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("config watcher unavailable, live reload disabled", zap.Error(err))
		return
	}
	if err := watcher.Add(path); err != nil {
		log.Warn("cannot watch config file, live reload disabled",
			zap.String("path", path), zap.Error(err))
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// Editors often emit a burst of events per save.
				time.Sleep(100 * time.Millisecond)
				cfg, err := Load(path)
				if err != nil {
					log.Warn("config reload failed, keeping previous settings", zap.Error(err))
					continue
				}
				log.Info("config file changed, applying hot-tunable settings")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
}
