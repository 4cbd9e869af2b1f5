package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"vulkan-renderer/logging"
)

// Watch sends the settings of the file at path every time it changes to
// something valid and different from what was sent before. Invalid files are
// logged and skipped. Watching stops, and the channel is closed, when ctx is
// done.
//
// The directory is watched rather than the file, so editors which replace the
// file on save keep being followed.
func Watch(ctx context.Context, path string, current Settings, log *slog.Logger) (<-chan Settings, error) {
	if log == nil {
		log = logging.Discard()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "watching %s", filepath.Dir(abs))
	}

	out := make(chan Settings, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		last := current
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				s, err := Load(abs)
				if err != nil {
					log.Warn("ignoring settings change", slog.Any("err", err))
					continue
				}
				if s == last {
					continue
				}
				last = s
				log.Info("settings reloaded", slog.String("path", abs))

				select {
				case out <- s:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("settings watcher", slog.Any("err", err))
			}
		}
	}()
	return out, nil
}
