// Package di provides dependency injection configuration for the daemon
// and the toolkit commands.
package di

import (
	"github.com/samber/do/v2"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
// The command layer seeds its parsed flag values so the config provider
// can apply its precedence chain. Construction is lazy: each command
// invokes only the component it needs, so the toolkit commands never open
// the watcher and the history command never touches the event source.
func NewContainer(flags config.Flags) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, flags)

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideJournal)

	// Pipeline
	do.Provide(injector, providers.ProvideWatcher)
	do.Provide(injector, providers.ProvideFilter)
	do.Provide(injector, providers.ProvideResolver)
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideController)

	// Toolkit
	do.Provide(injector, providers.ProvideFileOps)

	return injector
}
