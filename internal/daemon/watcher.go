package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultQuietWindow = 2 * time.Second
	defaultMaxDelay    = 30 * time.Second
)

// ContentWatcher monitors the posts tree and coalesces change bursts into
// single build triggers. Two timers govern emission: a quiet window that
// restarts on every event, and a max delay so a steady stream of saves
// cannot postpone the build indefinitely.
type ContentWatcher struct {
	dir         string
	watcher     *fsnotify.Watcher
	quietWindow time.Duration
	maxDelay    time.Duration
	trigger     func(reason string)
}

// NewContentWatcher watches dir (recursively) and calls trigger once per
// settled burst of changes.
func NewContentWatcher(dir string, quietWindow, maxDelay time.Duration, trigger func(reason string)) (*ContentWatcher, error) {
	if quietWindow <= 0 {
		quietWindow = defaultQuietWindow
	}
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	cw := &ContentWatcher{
		dir:         dir,
		watcher:     w,
		quietWindow: quietWindow,
		maxDelay:    maxDelay,
		trigger:     trigger,
	}
	if err := cw.addRecursive(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return cw, nil
}

func (cw *ContentWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		if werr := cw.watcher.Add(path); werr != nil {
			return fmt.Errorf("watch %s: %w", path, werr)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled.
func (cw *ContentWatcher) Run(ctx context.Context) {
	slog.Info("Watching content directory", "dir", cw.dir, "quiet_window", cw.quietWindow, "max_delay", cw.maxDelay)
	defer cw.watcher.Close()

	var (
		quiet    *time.Timer
		deadline *time.Timer
		quietC   <-chan time.Time
		maxC     <-chan time.Time
		events   int
	)

	emit := func(cause string) {
		if events == 0 {
			return
		}
		slog.Info("Content changed, triggering build", "events", events, "cause", cause)
		cw.trigger(cause)
		events = 0
		quietC = nil
		maxC = nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(ev) {
				continue
			}
			// new directories must be watched too
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = cw.addRecursive(ev.Name)
				}
			}
			events++
			if quiet == nil {
				quiet = time.NewTimer(cw.quietWindow)
			} else {
				resetTimer(quiet, cw.quietWindow)
			}
			quietC = quiet.C
			if maxC == nil {
				if deadline == nil {
					deadline = time.NewTimer(cw.maxDelay)
				} else {
					resetTimer(deadline, cw.maxDelay)
				}
				maxC = deadline.C
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Content watcher error", "err", err)

		case <-quietC:
			emit("quiet")

		case <-maxC:
			emit("max_delay")
		}
	}
}

// relevant filters out editor noise: only markdown changes inside the tree
// matter, and dotfiles (vim swap files, temp saves) are ignored.
func (cw *ContentWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	// directory events carry no extension; accept them so new
	// subdirectories get picked up
	return filepath.Ext(base) == "" || strings.EqualFold(filepath.Ext(base), ".md")
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
