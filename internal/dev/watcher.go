package dev

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ChangeKind classifies a detected file change by what it invalidates.
type ChangeKind int

const (
	// KindServer invalidates the render bundle.
	KindServer ChangeKind = iota

	// KindClient invalidates the client bundle.
	KindClient

	// KindCSS invalidates stylesheets only; browsers can swap these
	// without a full page reload.
	KindCSS

	// KindStatic covers public files and anything unclassified.
	KindStatic
)

// Change is a detected file change.
type Change struct {
	Path string
	Kind ChangeKind
}

// Watcher monitors source files and invokes a callback on changes.
// Start blocks until the context is cancelled.
type Watcher interface {
	OnChange(fn func(Change))
	Start(ctx context.Context) error
}

// WatchConfig configures a watcher.
type WatchConfig struct {
	// Paths are the directories to watch.
	Paths []string

	// Ignore patterns to skip: bare names, globs, or path segments.
	Ignore []string

	// Interval is the poll period for the polling watcher and the
	// debounce window for the notification watcher.
	Interval time.Duration
}

// DefaultIgnore contains patterns skipped by every watcher.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"dist",
	"*_test.go",
	"*.tmp",
	"*.swp",
	"*~",
}

// NewWatcher selects a watcher for the polling mode: "on" forces the
// polling watcher, "off" requires OS notifications, "auto" prefers
// notifications and falls back to polling. The returned string names the
// chosen strategy for status output.
func NewWatcher(mode string, cfg WatchConfig) (Watcher, string, error) {
	if cfg.Interval == 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	cfg.Ignore = append(append([]string{}, DefaultIgnore...), cfg.Ignore...)

	switch mode {
	case "on":
		return newPollWatcher(cfg), "polling", nil
	case "off":
		w, err := newNotifyWatcher(cfg)
		if err != nil {
			return nil, "", err
		}
		return w, "notifications", nil
	default:
		if w, err := newNotifyWatcher(cfg); err == nil {
			return w, "notifications", nil
		}
		return newPollWatcher(cfg), "polling", nil
	}
}

// pollWatcher detects changes by rescanning modification times. Slower
// than OS notifications but works on every filesystem, including network
// mounts and containers where inotify is unreliable.
type pollWatcher struct {
	cfg      WatchConfig
	mu       sync.Mutex
	onChange func(Change)
	mtimes   map[string]time.Time
}

func newPollWatcher(cfg WatchConfig) *pollWatcher {
	return &pollWatcher{
		cfg:    cfg,
		mtimes: make(map[string]time.Time),
	}
}

func (w *pollWatcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

func (w *pollWatcher) Start(ctx context.Context) error {
	w.scan(false)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan(true)
		}
	}
}

// scan walks the watched paths and records modification times. When
// report is set, new or newer files and deletions are emitted.
func (w *pollWatcher) scan(report bool) {
	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()

	var changes []Change
	seen := make(map[string]bool)

	for _, root := range w.cfg.Paths {
		filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				if ignoreMatch(w.cfg.Ignore, p) {
					return filepath.SkipDir
				}
				return nil
			}
			if ignoreMatch(w.cfg.Ignore, p) {
				return nil
			}

			seen[p] = true

			w.mu.Lock()
			last, known := w.mtimes[p]
			w.mtimes[p] = info.ModTime()
			w.mu.Unlock()

			if report && (!known || info.ModTime().After(last)) {
				changes = append(changes, Change{Path: p, Kind: classify(p)})
			}
			return nil
		})
	}

	// Deletions invalidate builds too.
	w.mu.Lock()
	for p := range w.mtimes {
		if !seen[p] {
			delete(w.mtimes, p)
			if report {
				changes = append(changes, Change{Path: p, Kind: classify(p)})
			}
		}
	}
	w.mu.Unlock()

	if callback == nil {
		return
	}
	for _, c := range changes {
		callback(c)
	}
}

// ignoreMatch checks a path against ignore patterns: exact base name,
// glob on base name, glob on full path, or path segment.
func ignoreMatch(patterns []string, fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}

		hasSep := strings.Contains(pattern, "/")
		hasGlob := strings.ContainsAny(pattern, "*?[")

		switch {
		case hasGlob && hasSep:
			if ok, _ := path.Match(filepath.ToSlash(pattern), normalized); ok {
				return true
			}
		case hasGlob:
			if ok, _ := filepath.Match(pattern, name); ok {
				return true
			}
		case hasSep:
			if strings.Contains("/"+normalized+"/", "/"+filepath.ToSlash(pattern)+"/") {
				return true
			}
		default:
			if hasSegment(normalized, pattern) {
				return true
			}
		}
	}
	return false
}

func hasSegment(p, segment string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// classify maps a file path to the build artifact it invalidates.
func classify(p string) ChangeKind {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".go":
		return KindServer
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".json":
		return KindClient
	case ".css", ".scss", ".sass", ".less":
		return KindCSS
	default:
		return KindStatic
	}
}
