package domain

import "time"

// ShutdownOrigin says where a shutdown request came from.
type ShutdownOrigin string

const (
	// ShutdownBySignal marks a request delivered via SIGINT or SIGTERM.
	ShutdownBySignal ShutdownOrigin = "signal"
	// ShutdownByResolver marks a request made through the dialogue.
	ShutdownByResolver ShutdownOrigin = "resolver"
)

// ShutdownRequest captures the first request to end a watch session. Later
// requests while draining escalate to a forced abort instead of replacing it.
type ShutdownRequest struct {
	Time   time.Time      `json:"time"`
	Origin ShutdownOrigin `json:"origin"`
}

// NewShutdownRequest stamps a request from the given origin.
func NewShutdownRequest(origin ShutdownOrigin) ShutdownRequest {
	return ShutdownRequest{Time: time.Now(), Origin: origin}
}
