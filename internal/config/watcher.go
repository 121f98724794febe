package config

import (
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// FileWatcher watches files/directories and calls a handler on changes,
// debounced so editor save bursts fire once
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	handler       func()
	filter        func(name string) bool
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	stopChan      chan struct{}
	prefix        string
}

// NewFileWatcher creates a file watcher. The filter decides which file
// names trigger the handler; nil accepts everything.
func NewFileWatcher(prefix string, filter func(name string) bool, handler func()) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		handler:  handler,
		filter:   filter,
		stopChan: make(chan struct{}),
		prefix:   prefix,
	}

	go fw.watchLoop()
	return fw, nil
}

// Add adds a path to watch
func (fw *FileWatcher) Add(path string) error {
	return fw.watcher.Add(path)
}

// Stop stops the watcher
func (fw *FileWatcher) Stop() {
	close(fw.stopChan)
	fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case <-fw.stopChan:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.filter != nil && !fw.filter(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				fw.debounceMu.Lock()
				if fw.debounceTimer != nil {
					fw.debounceTimer.Stop()
				}
				fw.debounceTimer = time.AfterFunc(debounceDelay, func() {
					log.Printf("[%s] Files changed, reloading...", fw.prefix)
					if fw.handler != nil {
						fw.handler()
					}
				})
				fw.debounceMu.Unlock()
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[%s] Watcher error: %v", fw.prefix, err)
		}
	}
}
