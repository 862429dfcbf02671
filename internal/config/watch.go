package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads s from path whenever the file is written, then calls
// onReload. A file that fails to parse is logged and the previous config
// stays in effect. Watching stops when ctx is done.
func (s *Settings) Watch(ctx context.Context, path string, logger *log.Logger, onReload func(*Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config: %w", err)
	}

	go func() {
		defer watcher.Close()
		name := filepath.Base(path)
		var pending *time.Timer
		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, func() { s.reload(path, logger, onReload) })
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Printf("config: watch error: %v", err)
			}
		}
	}()
	return nil
}

func (s *Settings) reload(path string, logger *log.Logger, onReload func(*Settings)) {
	cfg, err := LoadConfig(path)
	if err != nil {
		logger.Printf("config: reload %s: %v (keeping previous config)", path, err)
		return
	}
	s.Replace(cfg)
	logger.Printf("config: reloaded %s", path)
	if onReload != nil {
		onReload(s)
	}
}
