// Package watcher debounces filesystem change notifications into
// incremental rescan triggers, adapted from the teacher's
// ScannerService.Watch (internal/services/scanner.go).
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch watches musicRoot recursively and, after a quiet period of
// debounce following the last change, invokes rescan. It blocks until
// ctx is cancelled or the watcher fails.
func Watch(ctx context.Context, musicRoot string, debounce time.Duration, log *slog.Logger, rescan func(context.Context)) error {
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = 5 * time.Second
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	err = filepath.WalkDir(musicRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != musicRoot {
				return fs.SkipDir
			}
			if addErr := w.Add(path); addErr != nil {
				log.Warn("watcher: failed to watch directory", "path", path, "error", addErr)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	debounceTimer := time.NewTimer(debounce)
	debounceTimer.Stop()
	var scanning atomic.Bool

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.Contains(ev.Name, string(filepath.Separator)+".") || strings.HasSuffix(ev.Name, ".bbolt") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				debounceTimer.Reset(debounce)
			}
		case <-debounceTimer.C:
			if !scanning.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer scanning.Store(false)
				rescan(context.Background())
			}()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
