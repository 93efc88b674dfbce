package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one run of the watch daemon. Every record produced
// during the run carries its ID so history can be inspected per run.
type Session struct {
	ID        string    `json:"id"`
	WatchDir  string    `json:"watch_dir"`
	StartedAt time.Time `json:"started_at"`
}

// NewSession creates a session for the given watch root.
func NewSession(watchDir string) Session {
	return Session{
		ID:        uuid.NewString(),
		WatchDir:  watchDir,
		StartedAt: time.Now(),
	}
}

// Record is the durable form of a terminal transition. Exactly one record is
// written per watched entry, when it reaches done, failed, or skipped.
type Record struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Time        time.Time       `json:"time"`
	Source      string          `json:"source"`
	Destination string          `json:"destination,omitempty"`
	Kind        EntryKind       `json:"kind"`
	State       ProcessingState `json:"state"`
	Attempts    int             `json:"attempts"`
	Error       string          `json:"error,omitempty"`
}

// NewRecord builds the record for an entry's terminal state. The journal
// assigns the ID on append.
func NewRecord(session Session, e *WatchEntry, destination string, attempts int, errText string) Record {
	return Record{
		SessionID:   session.ID,
		Time:        time.Now(),
		Source:      e.Path,
		Destination: destination,
		Kind:        e.Kind,
		State:       e.State,
		Attempts:    attempts,
		Error:       errText,
	}
}
