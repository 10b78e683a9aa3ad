package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watcher watches a Workspace's src/ tree for .chimod and attached .c
// source edits and invokes a callback per changed module path, debounced
// so a burst of saves collapses into one recompile.
type Watcher struct {
	ws       *Workspace
	fsw      *fsnotify.Watcher
	onChange func(modulePath string)
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}

	pendingMu sync.Mutex
	pending   map[string]time.Time
}

// Watch starts watching w's src/ directory tree, calling onChange with
// the affected module path (debounced) whenever a .chimod file or a
// file inside a module's .c/ source directory changes. The returned
// Watcher must be closed to release the underlying inotify/kqueue
// handle and stop its goroutines.
func (w *Workspace) Watch(onChange func(modulePath string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("workspace: creating watcher: %w", err)
	}

	srcDir := filepath.Join(w.Root, "src")
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}

	wt := &Watcher{
		ws:       w,
		fsw:      fsw,
		onChange: onChange,
		logger:   slog.Default(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		pending:  make(map[string]time.Time),
	}
	go wt.processEvents()
	go wt.processDebounced()
	return wt, nil
}

func (wt *Watcher) processEvents() {
	for {
		select {
		case <-wt.stop:
			return
		case ev, ok := <-wt.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if modulePath, ok := wt.ws.modulePathFromFile(ev.Name); ok {
				wt.pendingMu.Lock()
				wt.pending[modulePath] = time.Now()
				wt.pendingMu.Unlock()
			}
		case err, ok := <-wt.fsw.Errors:
			if !ok {
				return
			}
			wt.logger.Error("workspace: watcher error", "error", err)
		}
	}
}

func (wt *Watcher) processDebounced() {
	defer close(wt.done)
	ticker := time.NewTicker(watchDebounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-wt.stop:
			wt.flushReady(true)
			return
		case <-ticker.C:
			wt.flushReady(false)
		}
	}
}

func (wt *Watcher) flushReady(all bool) {
	wt.pendingMu.Lock()
	defer wt.pendingMu.Unlock()

	now := time.Now()
	for modulePath, ts := range wt.pending {
		if !all && now.Sub(ts) < watchDebounce {
			continue
		}
		delete(wt.pending, modulePath)
		wt.onChange(modulePath)
	}
}

// Close stops the watcher's goroutines and releases its OS handle.
func (wt *Watcher) Close() error {
	select {
	case <-wt.stop:
	default:
		close(wt.stop)
	}
	<-wt.done
	return wt.fsw.Close()
}
