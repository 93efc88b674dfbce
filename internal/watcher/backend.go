package watcher

import "context"

// Backend defines the platform-specific file watching implementation
type Backend interface {
	// Watch sets the directory to be monitored. Only direct children of the
	// watch root are observed; entries created inside them belong to the
	// entry, not the pipeline.
	Watch(path string) error

	// Start begins watching for events. This method blocks until the
	// context is cancelled or an unrecoverable error occurs.
	Start(ctx context.Context) error

	// Stop stops the watcher and releases all resources. The events and
	// errors channels are closed; a stopped backend cannot be restarted.
	Stop() error

	// Events returns the channel for receiving file system events
	Events() <-chan Event

	// Errors returns the channel for receiving errors
	Errors() <-chan error
}
