//go:build !linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fallbackBackend implements Backend using fsnotify. It watches exactly
// one directory, non-recursively, and translates fsnotify operations into
// the uniform event set. Write storms are left to the debouncing stage
// downstream, so this backend stays a thin translation layer.
type fallbackBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher
	root    string

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// newFallbackBackend creates a fallback backend using fsnotify.
func newFallbackBackend(logger *slog.Logger, opts Options) (*fallbackBackend, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &fallbackBackend{
		logger:  logger,
		opts:    opts,
		watcher: watcher,
		events:  make(chan Event, eventBufferSize),
		errors:  make(chan error, errorBufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Watch registers the single directory to monitor. Calling it a second
// time is an error; the backend watches one root for its whole lifetime.
func (b *fallbackBackend) Watch(path string) error {
	path = filepath.Clean(path)

	if b.root != "" {
		return fmt.Errorf("backend already watching %s", b.root)
	}

	if err := b.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to add watch for %s: %w", path, err)
	}

	b.root = path
	b.logger.Debug("added watch", "path", path)

	return nil
}

// Start begins watching for events. It blocks until the context is
// cancelled or Stop is called.
func (b *fallbackBackend) Start(ctx context.Context) error {
	if b.root == "" {
		return fmt.Errorf("no watch registered, call Watch first")
	}

	b.wg.Add(1)
	go b.processEvents(ctx)

	select {
	case <-ctx.Done():
	case <-b.done:
	}
	return nil
}

// processEvents translates fsnotify events until shutdown.
func (b *fallbackBackend) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFsnotifyEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.sendError(err)
		}
	}
}

// handleFsnotifyEvent maps one fsnotify event onto the uniform Event set.
func (b *fallbackBackend) handleFsnotifyEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	// The watched directory itself was removed or renamed away.
	if path == b.root {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			b.logger.Warn("watch root is gone", "path", b.root, "op", event.Op.String())
			b.emit(Event{Type: EventRootGone, Path: b.root, IsDir: true})
		}
		return
	}

	if b.opts.shouldIgnore(path) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Rename reports the old name, so from this directory's point of
		// view the entry is simply gone.
		b.emit(Event{Type: EventRemoved, Path: path})

	case event.Op&fsnotify.Create != 0:
		b.emit(b.statEvent(EventCreated, path))

	case event.Op&fsnotify.Write != 0:
		b.emit(b.statEvent(EventWritten, path))
	}
}

// statEvent builds an event enriched with size, kind, and modification
// time. A failed stat still produces the event; downstream stages detect
// vanished entries on their own.
func (b *fallbackBackend) statEvent(typ EventType, path string) Event {
	event := Event{Type: typ, Path: path}
	if info, err := os.Lstat(path); err == nil {
		event.IsDir = info.IsDir()
		event.Size = info.Size()
		event.ModTime = info.ModTime()
	}
	return event
}

// emit sends an event unless the backend is shutting down.
func (b *fallbackBackend) emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// sendError forwards an error unless the backend is shutting down.
func (b *fallbackBackend) sendError(err error) {
	select {
	case b.errors <- err:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *fallbackBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *fallbackBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the watcher and releases resources.
func (b *fallbackBackend) Stop() error {
	close(b.done)

	err := b.watcher.Close()
	b.wg.Wait()

	close(b.events)
	close(b.errors)

	return err
}

// newLinuxBackend is a stub that should never be called on non-Linux
// platforms. It exists only to satisfy the compiler when watcher.go
// references it.
func newLinuxBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("linux backend not available on this platform")
}
