// Package watch re-runs a callback when a repository's git metadata changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/git-filegraph/internal/debounce"
)

const DefaultDelay = 350 * time.Millisecond

// Watcher observes the .git directory of a repository (or the repository
// root when there is none) and coalesces bursts of events.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	deb     *debounce.Debouncer
	changes chan struct{}
}

func New(root string, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	for path := range watchPaths(root) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fsw.Add(path); err != nil {
			err := errors.Join(err, fsw.Close())
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w := &Watcher{
		root:    root,
		fsw:     fsw,
		changes: make(chan struct{}, 1),
	}
	w.deb = debounce.New(delay, func() {
		select {
		case w.changes <- struct{}{}:
		default:
		}
	})
	return w, nil
}

// Run blocks until ctx is done, calling onChange after each quiet period that
// follows relevant events. Calls are serialized; an error from onChange is
// logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnoreWatchPath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.deb.Trigger()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		case <-w.changes:
			slog.Debug("repository changed", slog.String("repo", w.root))
			if err := onChange(ctx); err != nil {
				slog.Error("re-render failed", slog.Any("error", err))
			}
		}
	}
}

func (w *Watcher) Close() error {
	w.deb.Stop()
	return w.fsw.Close()
}

// watchPaths lists the .git directory and its branch refs, or root itself
// when .git is not a directory (worktrees, bare repositories).
func watchPaths(root string) iter.Seq[string] {
	uniquePaths := map[string]struct{}{}
	if root == "" {
		return maps.Keys(uniquePaths)
	}
	appendUnique := func(p string) { uniquePaths[p] = struct{}{} }
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		appendUnique(gitDir)
		heads := filepath.Join(gitDir, "refs", "heads")
		if info, err := os.Stat(heads); err == nil && info.IsDir() {
			appendUnique(heads)
		}
		return maps.Keys(uniquePaths)
	}
	appendUnique(root)
	return maps.Keys(uniquePaths)
}

func shouldIgnoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
