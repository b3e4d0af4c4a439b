package vault

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher debounces fsnotify events on the vault's database file and
// invalidates the in-process read cache whenever an external process
// writes to it. Grounded on Diniboy1123/manifesto's config.WatchConfig,
// which debounces fsnotify Write/Create events the same way for its own
// hot-reloadable config file.
type watcher struct {
	fs *fsnotify.Watcher
}

func watchFile(path string, onChange func()) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(path); err != nil {
		fs.Close()
		return nil, err
	}

	w := &watcher{fs: fs}

	go func() {
		var mu sync.Mutex
		var timer *time.Timer
		for {
			select {
			case event, ok := <-fs.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, onChange)
				mu.Unlock()
			case _, ok := <-fs.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return w, nil
}

func (w *watcher) Close() error { return w.fs.Close() }
