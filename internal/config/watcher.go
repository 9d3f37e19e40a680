package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// WatchRegistry watches a JSONC registry file and invokes reload with the
// re-parsed registry whenever the file changes. Parse failures keep the
// previous registry in effect. The returned stop function ends the watch.
func WatchRegistry(path string, reload func(*GatewayConfig)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops the
	// watch on the file itself.
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	done := make(chan struct{})

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, func() {
					data, errRead := os.ReadFile(target)
					if errRead != nil {
						log.Warnf("registry reload: read failed: %v", errRead)
						return
					}
					cfg, errParse := ParseGatewayConfig(string(data))
					if errParse != nil {
						log.Warnf("registry reload: %v", errParse)
						return
					}
					log.Infof("registry reloaded: %d providers", len(cfg.Providers))
					reload(cfg)
				})
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("registry watcher: %v", errWatch)
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
