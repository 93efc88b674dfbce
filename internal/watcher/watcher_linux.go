//go:build linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// readBufferSize is large enough for a burst of events with long names.
	readBufferSize = 64 * 1024

	// pollTimeoutMs bounds how long the read loop sleeps in poll(2) so it
	// notices shutdown promptly even when the directory is quiet.
	pollTimeoutMs = 200
)

// watchMask selects the inotify events the pipeline needs:
// IN_CREATE:      entry appeared (new file or directory)
// IN_CLOSE_WRITE: file closed after writing, contents settled
// IN_MOVED_TO:    entry moved into the watched directory
// IN_DELETE:      entry deleted from the watched directory
// IN_MOVED_FROM:  entry moved out of the watched directory
// IN_DELETE_SELF: the watched directory itself was deleted
// IN_MOVE_SELF:   the watched directory itself was renamed away
const watchMask = unix.IN_CREATE | unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO |
	unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF

// linuxBackend implements Backend using Linux inotify. It watches exactly
// one directory, non-recursively.
type linuxBackend struct {
	logger *slog.Logger
	opts   Options
	fd     int
	wd     int
	root   string
	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// newLinuxBackend creates a new Linux-specific file watcher backend.
func newLinuxBackend(logger *slog.Logger, opts Options) (*linuxBackend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}

	return &linuxBackend{
		logger: logger,
		opts:   opts,
		fd:     fd,
		wd:     -1,
		events: make(chan Event, eventBufferSize),
		errors: make(chan error, errorBufferSize),
		done:   make(chan struct{}),
	}, nil
}

// Watch registers the single directory to monitor. Calling it a second
// time is an error; the backend watches one root for its whole lifetime.
func (b *linuxBackend) Watch(path string) error {
	path = filepath.Clean(path)

	if b.root != "" {
		return fmt.Errorf("backend already watching %s", b.root)
	}

	wd, err := unix.InotifyAddWatch(b.fd, path, watchMask)
	if err != nil {
		return fmt.Errorf("inotify_add_watch failed for %s: %w", path, err)
	}

	b.root = path
	b.wd = wd
	b.logger.Debug("added watch", "path", path, "wd", wd)

	return nil
}

// Start begins watching for events. It blocks until the context is
// cancelled or Stop is called.
func (b *linuxBackend) Start(ctx context.Context) error {
	if b.root == "" {
		return fmt.Errorf("no watch registered, call Watch first")
	}

	b.wg.Add(1)
	go b.readEvents(ctx)

	select {
	case <-ctx.Done():
	case <-b.done:
	}
	return nil
}

// readEvents reads raw inotify events from the kernel. The descriptor is
// non-blocking, so poll(2) gates each read; the timeout keeps shutdown
// responsive without spinning on EAGAIN.
func (b *linuxBackend) readEvents(ctx context.Context) {
	defer b.wg.Done()

	buf := make([]byte, readBufferSize)
	fds := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLIN}}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			b.sendError(fmt.Errorf("failed to poll inotify descriptor: %w", err))
			return
		}
		if n == 0 {
			continue // timeout, re-check shutdown
		}

		nr, err := unix.Read(b.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			b.sendError(fmt.Errorf("failed to read inotify events: %w", err))
			return
		}

		if nr < unix.SizeofInotifyEvent {
			continue
		}

		b.parseEvents(buf[:nr])
	}
}

// parseEvents walks a buffer of raw inotify events and dispatches each one.
func (b *linuxBackend) parseEvents(buf []byte) {
	offset := 0
	for offset < len(buf) {
		//nolint:gosec // G103: Legitimate use of unsafe for syscall interface with inotify
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		offset += unix.SizeofInotifyEvent + int(event.Len)

		// Kernel queue overflow: events were lost. The consumer must be
		// told, otherwise entries silently never get processed.
		if event.Mask&unix.IN_Q_OVERFLOW != 0 {
			b.sendError(fmt.Errorf("inotify queue overflowed, events were lost"))
			continue
		}

		// The watch root itself went away.
		if event.Mask&(unix.IN_DELETE_SELF|unix.IN_MOVE_SELF|unix.IN_UNMOUNT) != 0 {
			b.logger.Warn("watch root is gone", "path", b.root, "mask", event.Mask)
			b.emit(Event{Type: EventRootGone, Path: b.root, IsDir: true})
			continue
		}

		// IN_IGNORED arrives after the kernel drops a watch; nothing to do.
		if event.Mask&unix.IN_IGNORED != 0 {
			continue
		}

		name := ""
		if event.Len > 0 {
			nameBytes := buf[offset-int(event.Len) : offset]
			name = string(nameBytes[:clen(nameBytes)])
		}
		if name == "" {
			continue
		}

		b.processEvent(name, event.Mask)
	}
}

// processEvent maps one named inotify event onto the uniform Event set.
func (b *linuxBackend) processEvent(name string, mask uint32) {
	path := filepath.Join(b.root, name)

	if b.opts.shouldIgnore(path) {
		return
	}

	isDir := mask&unix.IN_ISDIR != 0

	switch {
	case mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0:
		b.emit(Event{Type: EventRemoved, Path: path, IsDir: isDir})

	case mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0:
		b.emit(b.statEvent(EventCreated, path, isDir))

	case mask&unix.IN_CLOSE_WRITE != 0:
		if isDir {
			return
		}
		b.emit(b.statEvent(EventWritten, path, false))
	}
}

// statEvent builds an event enriched with size and modification time.
// A failed stat still produces the event; the entry may simply have
// vanished again, which downstream stages detect on their own.
func (b *linuxBackend) statEvent(typ EventType, path string, isDir bool) Event {
	event := Event{Type: typ, Path: path, IsDir: isDir}
	if info, err := os.Lstat(path); err == nil {
		event.Size = info.Size()
		event.ModTime = info.ModTime()
	}
	return event
}

// emit sends an event unless the backend is shutting down.
func (b *linuxBackend) emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// sendError forwards an error unless the backend is shutting down.
func (b *linuxBackend) sendError(err error) {
	select {
	case b.errors <- err:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *linuxBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *linuxBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the watcher and releases the inotify descriptor.
func (b *linuxBackend) Stop() error {
	close(b.done)
	b.wg.Wait()

	var closeErr error
	if b.fd >= 0 {
		closeErr = unix.Close(b.fd)
	}

	close(b.events)
	close(b.errors)

	return closeErr
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}

// newFallbackBackend is a stub that should never be called on Linux.
// It exists only to satisfy the compiler when watcher.go references it.
func newFallbackBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("fallback backend not available on Linux")
}
