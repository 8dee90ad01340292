// Package watcher debounces filesystem events under the library root and
// dispatches incremental reindex requests, the way the teacher's serving
// sidecar watches a single config file with fsnotify — generalized here to
// a whole tree, a 500ms coalescing window, and a short-lived ignore set
// (filled through Suppress) for writes that should not trigger a reindex.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

// DebounceWindow is the coalescing window events are batched within.
const DebounceWindow = 500 * time.Millisecond

// ReindexFunc is invoked once per flush with the set of affected model ids.
type ReindexFunc func(modelIDs []string)

// Watcher debounces fsnotify events on the canonical model tree.
type Watcher struct {
	fsw     *fsnotify.Watcher
	root    string
	onFlush ReindexFunc
	log     logging.Interface

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	ignoreMu sync.Mutex
	ignore   map[string]time.Time // path+mtime key -> expiry

	done chan struct{}
}

// New creates a Watcher rooted at root; call Start to begin watching.
func New(root string, onFlush ReindexFunc, log logging.Interface) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		root:    root,
		onFlush: onFlush,
		log:     log,
		pending: map[string]bool{},
		ignore:  map[string]time.Time{},
		done:    make(chan struct{}),
	}
	return w, nil
}

// Start adds root (recursively) to the underlying fsnotify watcher and
// begins processing events in a background goroutine.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.loop()
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Stop closes the underlying watcher and stops the processing goroutine.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.WithError(err).Warn("watcher error")
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.isIgnored(event.Name) {
		return
	}

	modelID := modelIDForPath(w.root, event.Name)
	if modelID == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[modelID] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(DebounceWindow, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	w.pending = map[string]bool{}
	w.mu.Unlock()

	if len(ids) > 0 && w.onFlush != nil {
		w.onFlush(ids)
	}
}

// Suppress adds a path+mtime entry to the ignore set for ttl; until it
// expires, every event for path is ignored (events are matched on path
// alone). The Storage Layout does not call it.
func (w *Watcher) Suppress(path string, mtime time.Time, ttl time.Duration) {
	key := ignoreKey(path, mtime)
	w.ignoreMu.Lock()
	w.ignore[key] = time.Now().Add(ttl)
	w.ignoreMu.Unlock()
}

func (w *Watcher) isIgnored(path string) bool {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()

	now := time.Now()
	for key, expiry := range w.ignore {
		if now.After(expiry) {
			delete(w.ignore, key)
			continue
		}
		if ignoreKeyPath(key) == path {
			return true
		}
	}
	return false
}

func ignoreKey(path string, mtime time.Time) string {
	return path + "@" + mtime.Format(time.RFC3339Nano)
}

func ignoreKeyPath(key string) string {
	i := strings.LastIndex(key, "@")
	if i < 0 {
		return key
	}
	return key[:i]
}

// modelIDForPath derives the model_id (model_type/family/name) affected by
// a changed path under root, or "" if the path is above model-directory
// depth (e.g. a change to root itself).
func modelIDForPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) < 3 {
		return ""
	}
	return filepath.Join(segments[0], segments[1], segments[2])
}
