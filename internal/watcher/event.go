package watcher

import "time"

// EventType represents the type of file system event
type EventType int

const (
	// EventCreated is emitted when a new entry appears in the watch root
	EventCreated EventType = iota
	// EventWritten is emitted when an existing entry's content changes
	EventWritten
	// EventRemoved is emitted when an entry is deleted or moved away
	EventRemoved
	// EventRootGone is emitted when the watch root itself disappears
	EventRootGone
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventWritten:
		return "written"
	case EventRemoved:
		return "removed"
	case EventRootGone:
		return "root-gone"
	default:
		return "unknown"
	}
}

// Event represents a file system event
type Event struct {
	// Type is the kind of event (created, written, removed, root-gone)
	Type EventType

	// Path is the affected path
	Path string

	// IsDir reports whether the entry is a directory
	IsDir bool

	// Size is the entry size in bytes at detection time
	Size int64

	// ModTime is the entry's last modification time at detection time
	ModTime time.Time
}
