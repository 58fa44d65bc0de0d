package index

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

	"github.com/starford/komorebi/internal/project"
)

// EventCallback is called after a watcher-driven index change.
// kind is "indexed" or "removed"; dir is the project directory name.
type EventCallback func(kind string, dir string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the projects directory and reindexes
// a project whenever one of its Markdown files changes, until ctx is
// cancelled. It calls cb (if non-nil) after each index mutation.
//
// New directories created at runtime are added to the watch list. Rename
// events trigger a debounced full Sync, since fsnotify reports only the
// old path.
func Watch(ctx context.Context, db *DB, projects *project.Repository, logger *slog.Logger, cb EventCallback) error {
	root, err := projects.Store().Abs(project.Dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("watcher: create %s: %w", root, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	refresh := func(dir string) {
		kind, err := refreshProject(db, projects, dir)
		if err != nil {
			logger.Warn("watcher: index failed", slog.String("project", dir), slog.String("error", err.Error()))
			return
		}
		if kind == "" {
			return
		}
		logger.Debug("watcher: "+kind, slog.String("project", dir))
		if cb != nil {
			cb(kind, dir)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, projects, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || rel == "." || strings.HasPrefix(rel, "..") {
				continue
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			dir := parts[0]
			if strings.HasPrefix(dir, ".") {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					refresh(dir)
					continue
				}
			}

			// Only the project directory itself and Markdown files inside it matter.
			if len(parts) > 1 && !strings.HasSuffix(ev.Name, ".md") {
				continue
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			refresh(dir)
			if ev.Op&fsnotify.Rename != 0 {
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile runs Sync and reports every project whose checksum changed.
func reconcile(db *DB, projects *project.Repository, logger *slog.Logger, cb EventCallback) {
	before, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	if err := Sync(db, projects, logger); err != nil {
		logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	after, err := db.AllChecksums()
	if err != nil || cb == nil {
		return
	}
	for dir := range before {
		if _, ok := after[dir]; !ok {
			cb("removed", dir)
		}
	}
	for dir, cs := range after {
		if before[dir] != cs {
			cb("indexed", dir)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
