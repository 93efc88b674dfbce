// Package resolver decides where detected entries go. The pipeline asks a
// Resolver for each stabilized entry; implementations range from an
// interactive terminal dialogue to scripted test doubles.
package resolver

import (
	"context"

	"github.com/add0794/automated-file-mover/internal/domain"
)

// Action is the resolver's instruction for an entry.
type Action int

const (
	// ActionMove relocates the entry to Decision.Destination.
	ActionMove Action = iota
	// ActionSkip leaves the entry in place and ends its processing.
	ActionSkip
	// ActionStop leaves the entry in place and requests shutdown of the
	// whole pipeline.
	ActionStop
	// ActionGiveUp accepts a failed move as final instead of supplying a
	// new destination. Only meaningful when Request.Failure is set.
	ActionGiveUp
)

// String returns the action name for logs.
func (a Action) String() string {
	switch a {
	case ActionMove:
		return "move"
	case ActionSkip:
		return "skip"
	case ActionStop:
		return "stop"
	case ActionGiveUp:
		return "give-up"
	default:
		return "unknown"
	}
}

// Failure describes an exhausted attempt sequence, offered back to the
// resolver so it can supply a different destination.
type Failure struct {
	Destination string
	Attempts    int
	Reason      string
}

// Request asks for a decision about one entry. Failure is nil on the
// first resolution and set when a previous sequence failed.
type Request struct {
	Path    string
	Kind    domain.EntryKind
	Failure *Failure
}

// Decision is the resolver's answer. Destination is set only for
// ActionMove; Notify requests a notification once the move completes.
type Decision struct {
	Action      Action
	Destination string
	Notify      bool
}

// Resolver chooses what happens to a detected entry. Implementations must
// honor ctx cancellation; a blocked dialogue must not survive shutdown.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Decision, error)
}
