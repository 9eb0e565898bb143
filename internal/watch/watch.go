// Package watch triggers rebuilds when the source trees change.
package watch

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

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc runs one full build. Its error is logged, not returned.
type RebuildFunc func(ctx context.Context) error

// Options selects what is watched.
type Options struct {
	// Roots are the directories to watch recursively.
	Roots []string
	// Ignore lists directories whose events never trigger a rebuild,
	// typically the output trees when they live inside a root.
	Ignore []string
	// Debounce is the quiet period after the last event before rebuilding.
	Debounce time.Duration
}

// Watch starts an fsnotify watcher on every root and calls rebuild after
// each burst of changes until ctx is cancelled. Rebuilds run on the watch
// goroutine, one at a time; events arriving during a rebuild start a new
// debounce period.
//
// New directories created at runtime are added to the watch list. Hidden
// files and directories are ignored.
func Watch(ctx context.Context, opts Options, logger *slog.Logger, rebuild RebuildFunc) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ignore := make([]string, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			ignore = append(ignore, abs)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		if err := addDirsRecursive(w, abs, ignore); err != nil {
			return err
		}
		logger.Info("watcher: started", slog.String("root", abs))
	}

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
			fire = timer.C
		} else {
			timer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			logger.Debug("watcher: rebuilding")
			if err := rebuild(ctx); err != nil {
				logger.Warn("watcher: rebuild failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath, err := filepath.Abs(ev.Name)
			if err != nil || ignored(absPath, ignore) || hidden(absPath) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath, ignore); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", absPath), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// ignored reports whether p is one of dirs or lies beneath one.
func ignored(p string, dirs []string) bool {
	for _, d := range dirs {
		if p == d || strings.HasPrefix(p, d+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

func hidden(p string) bool {
	return strings.HasPrefix(filepath.Base(p), ".")
}

// addDirsRecursive adds root and its subdirectories to the watcher, skipping
// hidden and ignored directories.
func addDirsRecursive(w *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (hidden(path) || ignored(path, ignore)) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
