// Package watcher provides the filesystem watch source for the daemon.
//
// It uses fsnotify for cross-platform file system event monitoring.
// fsnotify watches are non-recursive, so for a directory target every
// subdirectory is added to the watch set up front and newly created
// subdirectories are added as their create events arrive. The repository
// metadata directory is excluded so the daemon's own commits do not wake
// the loop.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ErrWatchUnavailable is returned when the watch cannot be established
// or permanently fails. It is fatal: without a working watch, changes
// would never be detected again, so the loop must terminate rather than
// continue silently.
var ErrWatchUnavailable = errors.New("filesystem watch unavailable")

// WatchSource blocks until filesystem activity occurs under the target.
// The daemon depends on this interface so the loop can be driven by
// synthetic events in tests.
type WatchSource interface {
	// WaitForChange blocks until at least one qualifying event occurs.
	// Spurious wakeups are acceptable; the debounce gate absorbs them.
	WaitForChange(ctx context.Context) error

	// Close releases the underlying watch resources.
	Close() error
}

// FSWatcher is the fsnotify-backed WatchSource.
type FSWatcher struct {
	watcher *fsnotify.Watcher

	// target is the canonical path being watched
	target string

	// targetIsDir selects recursive directory mode vs single-file mode
	targetIsDir bool

	// exclude is the metadata directory subtree to ignore
	exclude string
}

// New creates a watch source for target. For a directory target the
// whole tree below it is watched, excluding the subtree rooted at
// exclude; for a file target only events for that exact path qualify.
func New(target string, targetIsDir bool, exclude string) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatchUnavailable, err)
	}

	fw := &FSWatcher{
		watcher:     w,
		target:      target,
		targetIsDir: targetIsDir,
		exclude:     exclude,
	}

	if err := fw.arm(); err != nil {
		w.Close()
		return nil, err
	}

	return fw, nil
}

// arm registers the initial watch set.
func (fw *FSWatcher) arm() error {
	if !fw.targetIsDir {
		// fsnotify delivers more reliable events when watching the
		// parent directory than the file itself (editors replace files
		// by rename).
		if err := fw.watcher.Add(filepath.Dir(fw.target)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWatchUnavailable, fw.target, err)
		}
		return nil
	}

	err := filepath.WalkDir(fw.target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if fw.excluded(path) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWatchUnavailable, fw.target, err)
	}

	return nil
}

// WaitForChange blocks until a qualifying event occurs under the target.
func (fw *FSWatcher) WaitForChange(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("%w: event stream closed", ErrWatchUnavailable)
			}
			if fw.qualifies(event) {
				return nil
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("%w: error stream closed", ErrWatchUnavailable)
			}
			return fmt.Errorf("%w: %v", ErrWatchUnavailable, err)
		}
	}
}

// qualifies filters raw fsnotify events down to the fixed event set and
// keeps the watch set current as directories appear.
func (fw *FSWatcher) qualifies(event fsnotify.Event) bool {
	// Chmod and other metadata-only events never qualify.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	if fw.excluded(event.Name) {
		return false
	}

	if !fw.targetIsDir {
		return event.Name == fw.target
	}

	// A newly created directory must itself be watched before its
	// contents can generate events.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Best effort: the create event still qualifies even if
			// the add fails (the path may already be gone).
			_ = fw.watcher.Add(event.Name)
		}
	}

	return true
}

// excluded reports whether path lies inside the metadata directory.
func (fw *FSWatcher) excluded(path string) bool {
	if fw.exclude == "" {
		return false
	}
	return path == fw.exclude || strings.HasPrefix(path, fw.exclude+string(filepath.Separator))
}

// Close releases the underlying fsnotify watcher.
func (fw *FSWatcher) Close() error {
	return fw.watcher.Close()
}
