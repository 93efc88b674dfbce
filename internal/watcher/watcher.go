package watcher

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
)

const (
	eventBufferSize = 100
	errorBufferSize = 10
	flushInterval   = 50 * time.Millisecond
)

// Watcher monitors a single directory for new entries and surfaces them as
// a uniform event stream, independent of the platform backend underneath.
//
// The watcher automatically selects the best backend for the current platform:
// - Linux: uses inotify with IN_CLOSE_WRITE for instant, reliable detection
// - Others: uses fsnotify for portable detection during development
//
// Events from the backend pass through a coalescing stage so a slow
// consumer never blocks the kernel-facing read loop. Under pressure only
// the newest event per path is retained; per-path ordering is preserved.
type Watcher struct {
	backend Backend
	logger  *slog.Logger

	events chan Event
	errs   chan error
	queue  *coalescer

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New creates a watcher with a platform-appropriate backend.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	var backend Backend
	var err error

	if runtime.GOOS == "linux" {
		backend, err = newLinuxBackend(logger, opts)
		logger.Info("using Linux inotify backend with IN_CLOSE_WRITE")
	} else {
		backend, err = newFallbackBackend(logger, opts)
		logger.Info("using fsnotify fallback backend", "platform", runtime.GOOS)
	}

	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create watcher backend")
	}

	events := make(chan Event, eventBufferSize)
	return &Watcher{
		backend: backend,
		logger:  logger,
		events:  events,
		errs:    make(chan error, errorBufferSize),
		queue:   newCoalescer(events),
	}, nil
}

// Watch registers the directory to monitor. The watch is not recursive:
// only direct children of path produce events. The path must exist and be
// a directory when Watch is called.
func (w *Watcher) Watch(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return domainerrors.WatchRootUnavailablef("cannot access watch root %s", path).WithCause(err)
	}
	if !info.IsDir() {
		return domainerrors.WatchRootUnavailablef("watch root %s is not a directory", path)
	}
	return w.backend.Watch(path)
}

// Start begins watching. It blocks until the context is cancelled or the
// backend fails, so callers typically run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return domainerrors.Internal("watcher already started")
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.pump()

	return w.backend.Start(ctx)
}

// Stop shuts down the backend and waits for buffered events to drain.
// The watcher cannot be restarted after Stop.
func (w *Watcher) Stop() error {
	err := w.backend.Stop()
	w.wg.Wait()
	return err
}

// Events returns the channel delivering file system events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel delivering backend errors. Errors here are
// advisory; a fatal root loss arrives as EventRootGone on Events instead.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// pump shuttles events from the backend into the consumer-facing channel
// through the coalescer, and forwards backend errors. It exits when both
// backend channels are closed, closing the outward channels in turn.
func (w *Watcher) pump() {
	defer w.wg.Done()
	defer close(w.errs)
	defer close(w.events)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	in := w.backend.Events()
	errIn := w.backend.Errors()

	for in != nil || errIn != nil {
		select {
		case ev, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			w.queue.offer(ev)
		case err, ok := <-errIn:
			if !ok {
				errIn = nil
				continue
			}
			select {
			case w.errs <- err:
			default:
				w.logger.Warn("dropping watcher error, channel full", "error", err)
			}
		case <-ticker.C:
			w.queue.flush()
		}
	}

	// Final best-effort drain of anything still stashed.
	w.queue.flush()
	if n := w.queue.pending(); n > 0 {
		w.logger.Warn("discarding undelivered events at shutdown", "count", n)
	}
}
