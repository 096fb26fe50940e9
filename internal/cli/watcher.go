package cli

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a rebuild.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches every directory below a set of roots and calls a
// rebuild function once changes have settled.
type Watcher struct {
	watcher  *fsnotify.Watcher
	ignore   []string
	debounce time.Duration
	logger   *slog.Logger

	pending   bool
	lastEvent time.Time
}

// NewWatcher watches roots recursively. Events below any ignored path,
// such as the output directory, never trigger a rebuild.
func NewWatcher(roots, ignore []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		ignore:   ignore,
		debounce: debounce,
		logger:   logger,
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// Run blocks until ctx is cancelled, calling rebuild after each burst of
// changes. Rebuild errors are the callback's to report.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context)) error {
	tick := w.debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			if w.pending && time.Since(w.lastEvent) >= w.debounce {
				w.pending = false
				rebuild(ctx)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || w.ignored(event.Name) {
		return
	}
	w.logger.Debug("file changed", "path", event.Name, "op", event.Op.String())

	// New directories need watches of their own
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	w.pending = true
	w.lastEvent = time.Now()
}
