// Package notify delivers move-outcome notifications to the desktop and by
// email. Delivery is best effort. A failed notification is logged and never
// affects the outcome of the move itself.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/add0794/automated-file-mover/internal/domain"
	"github.com/add0794/automated-file-mover/internal/ratelimit"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Sink delivers messages over one channel (desktop, email).
type Sink interface {
	// Name identifies the sink for logging and rate limiting.
	Name() string
	// Send delivers the message. It honors ctx cancellation.
	Send(ctx context.Context, msg Message) error
}

// Compose renders the notification for a terminal record.
func Compose(record *domain.Record) Message {
	name := filepath.Base(record.Source)
	kind := "file"
	if record.Kind == domain.KindDirectory {
		kind = "folder"
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	timeStr := record.Time.Format("January 2, 2006 at 3:04 PM")

	switch record.State {
	case domain.StateDone:
		return Message{
			Subject: fmt.Sprintf("Moved '%s' to '%s'", name, record.Destination),
			Body: fmt.Sprintf("The %s '%s' was moved to:\n\n%s\n\nTime: %s\nHost: %s",
				kind, name, record.Destination, timeStr, host),
		}
	case domain.StateFailed:
		return Message{
			Subject: fmt.Sprintf("Failed to move '%s'", name),
			Body: fmt.Sprintf("The %s '%s' could not be moved after %d attempt(s).\n\nError: %s\n\nTime: %s\nHost: %s",
				kind, name, record.Attempts, record.Error, timeStr, host),
		}
	default:
		return Message{
			Subject: fmt.Sprintf("Skipped '%s'", name),
			Body: fmt.Sprintf("The %s '%s' was left in place.\n\nTime: %s\nHost: %s",
				kind, name, timeStr, host),
		}
	}
}

// Dispatcher fans a record out to every configured sink, throttled per sink.
type Dispatcher struct {
	sinks   []Sink
	limiter *ratelimit.Keyed
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher over the given sinks. Each sink is
// allowed a short burst, then at most one notification per interval.
func NewDispatcher(sinks []Sink, interval time.Duration, burst int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		limiter: ratelimit.NewEvery(interval, burst),
		logger:  logger,
	}
}

// Notify renders the record and delivers it to every sink. Sinks that are
// rate limited or failing are skipped with a log line.
func (d *Dispatcher) Notify(ctx context.Context, record *domain.Record) {
	if len(d.sinks) == 0 {
		return
	}

	msg := Compose(record)

	for _, sink := range d.sinks {
		if !d.limiter.Allow(sink.Name()) {
			d.logger.Debug("notification suppressed by rate limit",
				"sink", sink.Name(),
				"source", record.Source,
			)
			continue
		}

		if err := sink.Send(ctx, msg); err != nil {
			d.logger.Warn("notification delivery failed",
				"sink", sink.Name(),
				"source", record.Source,
				"error", err,
			)
			continue
		}

		d.logger.Debug("notification delivered",
			"sink", sink.Name(),
			"subject", msg.Subject,
		)
	}
}
