package tokenstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"userconsole/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last change to the
// token file before reloading it.
const DefaultDebounceInterval = 200 * time.Millisecond

// Watch reports changes made to the token file by other processes, for
// example `auth logout` run in a second terminal while the console is open.
// onChange runs after the cache has been reloaded and only when the
// persisted slots differ from the cached ones, so this process's own writes
// are not echoed back. Watch returns once the watcher is running; it stops
// when ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create token file watcher: %w", err)
	}

	// The directory is watched rather than the file because writes replace
	// the file by rename.
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	eventsCh := watcher.Events
	errorsCh := watcher.Errors

	go s.processEvents(ctx, watcher, eventsCh, errorsCh, onChange)

	logging.Debug("TokenStore", "Watching %s for changes", s.path)
	return nil
}

func (s *FileStore) processEvents(ctx context.Context, watcher *fsnotify.Watcher, eventsCh <-chan fsnotify.Event, errorsCh <-chan error, onChange func()) {
	defer watcher.Close()

	var (
		debounceMu    sync.Mutex
		debounceTimer *time.Timer
	)
	defer func() {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceMu.Unlock()
	}()

	reload := func() {
		if ctx.Err() != nil {
			return
		}
		changed, err := s.Reload()
		if err != nil {
			logging.Warn("TokenStore", "Failed to reload token file after change: %v", err)
			return
		}
		if changed {
			logging.Debug("TokenStore", "Token file changed by another process")
			if onChange != nil {
				onChange()
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != FileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			debounceMu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(DefaultDebounceInterval, reload)
			debounceMu.Unlock()

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("TokenStore", err, "fsnotify error")
		}
	}
}
