// Package notify watches the memory tree for edits made outside the store
// (hand-edited files, external tooling) and refreshes the store's index when
// they happen. The store's own writes already keep the index consistent;
// the watcher only covers the paths the store does not control.
package notify

import (
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// refresher is the subset of the store the watcher needs.
type refresher interface {
	RefreshIndex() error
}

// coalesceInterval is how often a pending refresh is retried while the rate
// limiter is holding it back.
const coalesceInterval = 250 * time.Millisecond

// Watcher refreshes a store index when files under the watched directories
// change. Refreshes are throttled so an editor save-storm coalesces into
// bounded rebuild work instead of one rebuild per write.
type Watcher struct {
	store   refresher
	dirs    []string
	limiter *rate.Limiter
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher over the given directories. refreshPerSec is
// the sustained index rebuild rate; bursts of one rebuild are allowed.
func NewWatcher(store refresher, dirs []string, refreshPerSec float64) *Watcher {
	if refreshPerSec <= 0 {
		refreshPerSec = 2.0
	}
	return &Watcher{
		store:   store,
		dirs:    dirs,
		limiter: rate.NewLimiter(rate.Limit(refreshPerSec), 1),
		done:    make(chan struct{}),
	}
}

// Start begins watching. Call Stop to clean up.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return err
		}
	}
	w.watcher = fw

	go w.loop()
	log.Printf("notify: watching %d directories for external edits", len(w.dirs))
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	dirty := false
	ticker := time.NewTicker(coalesceInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(evt) {
				continue
			}
			dirty = true
			if w.limiter.Allow() {
				w.refresh()
				dirty = false
			}
		case <-ticker.C:
			if dirty && w.limiter.Allow() {
				w.refresh()
				dirty = false
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

// relevant filters out the store's own temp files and non-item noise. Renames
// of temp files into place arrive as Create events on the final .md name, so
// the store's own atomic publishes do trigger refreshes — harmless, since the
// rebuild reads the exact state the store just wrote.
func relevant(evt fsnotify.Event) bool {
	name := filepath.Base(evt.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !strings.HasSuffix(name, ".md") {
		return false
	}
	return evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) refresh() {
	if err := w.store.RefreshIndex(); err != nil {
		log.Printf("notify: index refresh failed: %v", err)
	}
}
