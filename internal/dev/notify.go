package dev

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// notifyWatcher uses OS file notifications. New subdirectories are added
// to the watch set as they appear; events are debounced so editor
// write-then-rename sequences produce one change.
type notifyWatcher struct {
	cfg      WatchConfig
	fs       *fsnotify.Watcher
	mu       sync.Mutex
	onChange func(Change)
}

func newNotifyWatcher(cfg WatchConfig) (*notifyWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &notifyWatcher{cfg: cfg, fs: fs}
	for _, root := range cfg.Paths {
		if err := w.addTree(root); err != nil {
			fs.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *notifyWatcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// addTree registers a directory and all its subdirectories. Watch paths
// that do not exist yet are skipped, not errors.
func (w *notifyWatcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}

	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if ignoreMatch(w.cfg.Ignore, p) {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
}

func (w *notifyWatcher) Start(ctx context.Context) error {
	defer w.fs.Close()

	// pending coalesces events until the debounce window closes.
	pending := make(map[string]Change)
	var timer *time.Timer
	var fire <-chan time.Time

	flush := func() {
		w.mu.Lock()
		callback := w.onChange
		w.mu.Unlock()

		for _, c := range pending {
			if callback != nil {
				callback(c)
			}
		}
		pending = make(map[string]Change)
		fire = nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-fire:
			flush()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ignoreMatch(w.cfg.Ignore, event.Name) {
				continue
			}

			// Watch directories created after startup.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			pending[event.Name] = Change{Path: event.Name, Kind: classify(event.Name)}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Interval)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.cfg.Interval)
			}
			fire = timer.C

		case _, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
		}
	}
}
