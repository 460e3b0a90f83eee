package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long to wait for further changes before reloading.
const watchDebounce = 500 * time.Millisecond

// Watch reloads the config file whenever it changes on disk and hands each
// successfully validated config to onLoad. Files that fail to parse or
// validate are logged and skipped, keeping the last good config in effect.
// Watch blocks until ctx is done.
//
// Editors and orchestrators usually replace config files instead of
// writing them in place, so the parent directory is watched and events are
// filtered by name; changes are debounced so a burst of writes triggers
// one reload.
func Watch(ctx context.Context, path string, logger *slog.Logger, onLoad func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger.Info("Watching config file", "path", path, "debounce", watchDebounce)

	target := filepath.Clean(path)
	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("Config watcher error", "error", err)

		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false

			cfg, err := LoadFromFile(path)
			if err != nil {
				logger.Warn("Config reload skipped", "path", path, "error", err)
				continue
			}

			logger.Info("Config reloaded", "path", path)
			onLoad(cfg)
		}
	}
}
