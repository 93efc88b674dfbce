// Package debounce delays entry processing until filesystem activity
// settles. Raw watcher events fire on every write; the pipeline only wants
// an entry once its quiet period has elapsed with no further changes.
package debounce

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// pendingEntry tracks an entry that may still be changing.
type pendingEntry struct {
	timer   *time.Timer
	isDir   bool
	size    int64
	modTime time.Time
}

// Debouncer coalesces rapid activity on the same path, invoking the
// release callback once per path after the quiet period expires. An entry
// that vanishes before its quiet period elapses is discarded silently.
type Debouncer struct {
	quiet    time.Duration
	callback func(path string, isDir bool)
	logger   *slog.Logger

	pending map[string]*pendingEntry
	stopped bool
	mu      sync.Mutex
}

// New creates a debouncer. The callback is invoked outside the internal
// lock, once per path, after quiet elapses with no further activity.
func New(logger *slog.Logger, quiet time.Duration, callback func(path string, isDir bool)) *Debouncer {
	return &Debouncer{
		quiet:    quiet,
		callback: callback,
		logger:   logger,
		pending:  make(map[string]*pendingEntry),
	}
}

// Observe registers activity on path. A fresh path starts its quiet
// period; a pending path has its quiet period restarted. If the path no
// longer exists the pending entry, if any, is dropped.
func (d *Debouncer) Observe(path string, isDir bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[path]; ok {
		existing.timer.Stop()
	}

	info, err := os.Lstat(path)
	if err != nil {
		// Gone already. Whatever was pending is moot.
		delete(d.pending, path)
		return
	}

	entry := &pendingEntry{
		isDir:   isDir,
		size:    info.Size(),
		modTime: info.ModTime(),
	}
	entry.timer = time.AfterFunc(d.quiet, func() {
		d.settle(path)
	})
	d.pending[path] = entry
}

// Cancel drops a pending path without releasing it. Used when the entry
// is deleted before it ever became stable.
func (d *Debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.pending[path]; ok {
		entry.timer.Stop()
		delete(d.pending, path)
		d.logger.Debug("discarded before stable", "path", path)
	}
}

// settle runs when a quiet period expires. The path is released only if
// it still exists and its size and mtime match the last observation;
// otherwise the quiet period restarts with the fresh snapshot.
func (d *Debouncer) settle(path string) {
	d.mu.Lock()

	entry, ok := d.pending[path]
	if !ok || d.stopped {
		d.mu.Unlock()
		return
	}

	info, err := os.Lstat(path)
	if err != nil {
		// Vanished during the quiet period.
		delete(d.pending, path)
		d.mu.Unlock()
		d.logger.Debug("discarded before stable", "path", path)
		return
	}

	if info.Size() != entry.size || !info.ModTime().Equal(entry.modTime) {
		// Still changing without producing events we saw. Restart.
		entry.size = info.Size()
		entry.modTime = info.ModTime()
		entry.timer = time.AfterFunc(d.quiet, func() {
			d.settle(path)
		})
		d.mu.Unlock()
		return
	}

	isDir := entry.isDir
	delete(d.pending, path)
	d.mu.Unlock()

	d.callback(path, isDir)
}

// Stop cancels all pending timers and suppresses any callbacks that are
// about to fire. The debouncer cannot be reused after Stop.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for path, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, path)
	}
}

// PendingCount returns the number of paths awaiting their quiet period.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// IsPending reports whether path is awaiting its quiet period.
func (d *Debouncer) IsPending(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[path]
	return ok
}
