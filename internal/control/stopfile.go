// Package control lets an operator stop a running session from outside the
// process.
package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// pollInterval backs up fsnotify on filesystems that drop events.
const pollInterval = time.Second

// WatchStopFile returns a channel that is closed once path exists. A file left
// over from an earlier run is removed first. The watch ends with ctx.
func WatchStopFile(ctx context.Context, path string, logger zerolog.Logger) (<-chan struct{}, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid stop file path: %w", err)
	}
	if err := os.Remove(path); err == nil {
		logger.Warn().Str("path", path).Msg("Removed stale stop file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	stopped := make(chan struct{})
	go func() {
		defer watcher.Close()

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		events := watcher.Events
		errs := watcher.Errors
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Create|fsnotify.Write) {
					continue
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn().Err(err).Msg("Stop file watcher error")
				continue
			case <-ticker.C:
				if _, err := os.Stat(path); err != nil {
					continue
				}
			}

			logger.Info().Str("path", path).Msg("Stop file detected")
			close(stopped)
			return
		}
	}()

	return stopped, nil
}
