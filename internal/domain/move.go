package domain

import "time"

// AttemptOutcome classifies a single move attempt.
type AttemptOutcome string

const (
	OutcomeSuccess          AttemptOutcome = "success"
	OutcomeTransientFailure AttemptOutcome = "transient-failure"
	OutcomePermanentFailure AttemptOutcome = "permanent-failure"
)

// MoveAttempt records one try at relocating an entry. Attempts are immutable
// once recorded.
type MoveAttempt struct {
	Number      int            `json:"number"` // 1-based
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Outcome     AttemptOutcome `json:"outcome"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	Duration    time.Duration  `json:"duration"`
}

// MoveHistory is the ordered sequence of attempts against one destination.
type MoveHistory struct {
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Attempts    []MoveAttempt `json:"attempts"`
}

// Record appends an attempt, numbering it after the existing ones.
func (h *MoveHistory) Record(a MoveAttempt) {
	a.Number = len(h.Attempts) + 1
	h.Attempts = append(h.Attempts, a)
}

// Succeeded reports whether the final attempt landed the entry at the
// destination.
func (h *MoveHistory) Succeeded() bool {
	if len(h.Attempts) == 0 {
		return false
	}
	return h.Attempts[len(h.Attempts)-1].Outcome == OutcomeSuccess
}

// LastAttempt returns the most recent attempt, or nil if none were made.
func (h *MoveHistory) LastAttempt() *MoveAttempt {
	if len(h.Attempts) == 0 {
		return nil
	}
	return &h.Attempts[len(h.Attempts)-1]
}

// LastError returns the error text of the final attempt, empty on success.
func (h *MoveHistory) LastError() string {
	last := h.LastAttempt()
	if last == nil {
		return ""
	}
	return last.Error
}
