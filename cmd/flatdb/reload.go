package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/flatdb/internal/storage"
)

// reloadDelay coalesces the burst of events an editor emits when saving.
const reloadDelay = 200 * time.Millisecond

// watchConfig reloads the collection list of registry whenever the file at
// path changes. The directory is watched so that editors replacing the file
// by rename are handled. The secret, password and rate limits need a restart.
func watchConfig(ctx context.Context, path string, registry *storage.Registry) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					pending = time.After(reloadDelay)
				}
			case <-pending:
				pending = nil
				if err := reloadCollections(path, registry); err != nil {
					slog.ErrorContext(ctx, "Config reload failed; keeping previous collections", "config", path, "err", err)
					continue
				}
				slog.InfoContext(ctx, "Config reloaded", "config", path, "names", registry.Names())
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching config", "err", err)
			}
		}
	}()
	return nil
}

// reloadCollections reads the configuration at path and swaps the registry's
// collections. The file is never written. On error the registry is left
// untouched.
func reloadCollections(path string, registry *storage.Registry) error {
	cfg, err := storage.ReadServerConfig(path)
	if err != nil {
		return err
	}
	return registry.Reload(cfg.CollectionConfigs())
}
