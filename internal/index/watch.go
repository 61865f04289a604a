package index

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"compactmcp/internal/contract"
	"compactmcp/internal/logging"
)

// Watch re-indexes .compact files as they change under root, until the
// context is cancelled. Rapid event bursts (editors writing temp files
// then renaming, formatters rewriting) are coalesced per path with the
// given debounce window. New subdirectories are picked up as they
// appear.
func (ix *Indexer) Watch(ctx context.Context, root string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addDirsRecursive(watcher, root); err != nil {
		return err
	}
	logging.Index("watching %s (debounce %s)", root, debounce)

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	schedule := func(path string, fn func()) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Stop()
		}
		pending[path] = time.AfterFunc(debounce, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			fn()
		})
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ix.handleEvent(ctx, watcher, root, event, schedule)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryIndex).Warn("watch error: %v", err)
		}
	}
}

func (ix *Indexer) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, root string, event fsnotify.Event, schedule func(string, func())) {
	path := event.Name

	// A new directory needs its own watch before files inside it
	// produce events.
	if event.Op.Has(fsnotify.Create) {
		if err := addDirsRecursive(watcher, path); err == nil {
			logging.IndexDebug("watching new directory tree at %s", path)
		}
	}

	if !strings.HasSuffix(path, contract.FileExtension) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		schedule(path, func() {
			if err := ix.Remove(ctx, root, path); err != nil {
				logging.Get(logging.CategoryIndex).Warn("failed to drop %s from index: %v", path, err)
			} else {
				logging.Index("dropped %s from index", relPath(root, path))
			}
		})
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		schedule(path, func() {
			if _, err := ix.IndexFile(ctx, root, path); err != nil {
				logging.Get(logging.CategoryIndex).Warn("failed to re-index %s: %v", path, err)
			}
		})
	}
}

// addDirsRecursive watches path and every directory below it. Non-
// directory paths are ignored.
func addDirsRecursive(watcher *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}
