// Package providers contains dependency injection providers for the
// watcher daemon and the toolkit commands.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/logger"
)

// ProvideConfig loads the application configuration using the flag values
// the command layer seeded into the container.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags := do.MustInvoke[config.Flags](i)
	return config.Load(flags)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Logger.Level),
		Format: cfg.Logger.Format,
	})

	log.Debug("configuration loaded",
		"watch_dir", cfg.Watch.Dir,
		"destination_root", cfg.Mover.DestinationRoot,
		"journal_path", cfg.Journal.Path,
	)

	return log, nil
}
