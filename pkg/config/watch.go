package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/synnaxlabs/synnax-sub025/pkg/logutil"
)

var logger = logutil.GetLogger("[config] ")

// Watch calls f with the new configuration every time the file at path is
// written. Invalid configurations are logged and skipped. It returns a
// function that stops watching.
func Watch(path string, f func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file rather than write it, so the directory
	// is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) ||
					event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Printf("reloading %s: %v", path, err)
					continue
				}
				f(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Println("watching config:", err)
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}, nil
}
