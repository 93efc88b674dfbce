package domain

import (
	"fmt"
	"time"
)

// ProcessingState represents where a watched entry sits in the pipeline.
type ProcessingState string

const (
	StatePending   ProcessingState = "pending"
	StateResolving ProcessingState = "resolving"
	StateMoving    ProcessingState = "moving"
	StateDone      ProcessingState = "done"
	StateFailed    ProcessingState = "failed"
	StateSkipped   ProcessingState = "skipped"
)

// Terminal reports whether the state is final. A terminal entry never
// transitions again.
func (s ProcessingState) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// EntryKind distinguishes files from directories.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// WatchEntry represents one detected filesystem entry moving through the
// pipeline. Entries are created when a stabilized creation event is accepted
// and are dropped from tracking once they reach a terminal state.
type WatchEntry struct {
	ID        string          `json:"id"`
	Path      string          `json:"path"`
	Kind      EntryKind       `json:"kind"`
	FirstSeen time.Time       `json:"first_seen"`
	State     ProcessingState `json:"state"`
}

// NewWatchEntry creates a pending entry for the given path.
func NewWatchEntry(id, path string, kind EntryKind) *WatchEntry {
	return &WatchEntry{
		ID:        id,
		Path:      path,
		Kind:      kind,
		FirstSeen: time.Now(),
		State:     StatePending,
	}
}

// transition moves the entry to the target state if the current state is one
// of the allowed sources. State only ever moves forward; any attempt to leave
// a terminal state or to regress is an error.
func (e *WatchEntry) transition(to ProcessingState, from ...ProcessingState) error {
	for _, s := range from {
		if e.State == s {
			e.State = to
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s for %s", e.State, to, e.Path)
}

// MarkResolving transitions the entry from pending to resolving.
func (e *WatchEntry) MarkResolving() error {
	return e.transition(StateResolving, StatePending)
}

// MarkMoving transitions the entry from resolving to moving.
func (e *WatchEntry) MarkMoving() error {
	return e.transition(StateMoving, StateResolving)
}

// MarkDone transitions the entry from moving to done.
func (e *WatchEntry) MarkDone() error {
	return e.transition(StateDone, StateMoving)
}

// MarkSkipped transitions the entry to skipped. Skipping happens at the
// first dialogue (resolving) or when the user declines a new destination
// after a failed sequence (moving); no path reaches skipped without an
// explicit instruction.
func (e *WatchEntry) MarkSkipped() error {
	return e.transition(StateSkipped, StateResolving, StateMoving)
}

// MarkFailed transitions the entry to failed from any non-terminal state.
// Shutdown aborts entries that never reached the mover, so every
// non-terminal state is a legal source.
func (e *WatchEntry) MarkFailed() error {
	return e.transition(StateFailed, StatePending, StateResolving, StateMoving)
}
