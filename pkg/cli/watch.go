package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce absorbs the burst of events editors emit on save.
const watchDebounce = 200 * time.Millisecond

// watchScript calls run once, then again after every change to path, until
// ctx is done. The parent directory is watched so editors that replace the
// file on save are still seen.
func watchScript(ctx context.Context, path string, run func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	run()
	logger.Info("watching %s", abs)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}
			pending = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch %s: %v", abs, err)
		case <-pending:
			pending = nil
			run()
		}
	}
}
