package daemon

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/model"
)

// watchConfig hot-reloads the logging level when the config file changes.
// Scheduling intervals are fixed at startup; only the log level is live.
func (d *Daemon) watchConfig(ctx context.Context) (<-chan struct{}, error) {
	if d.configPath == "" {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Watch the directory: editors replace config files rather than writing
	// in place, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(d.configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", d.configPath, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != d.configPath {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					d.reloadConfig()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Errorf("fsnotify error=%v", err)
			}
		}
	}()
	return done, nil
}

func (d *Daemon) reloadConfig() {
	cfg, err := model.LoadConfig(d.configPath)
	if err != nil {
		d.logger.Errorf("config reload failed: %v", err)
		return
	}
	if cfg.Logging.Level != d.cfg.Logging.Level {
		d.logger.Infof("log level changed %s → %s", d.cfg.Logging.Level, cfg.Logging.Level)
		d.logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
		d.cfg.Logging.Level = cfg.Logging.Level
	}
}
