package providers

import (
	"github.com/samber/do/v2"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/fileops"
	"github.com/add0794/automated-file-mover/internal/logger"
)

// ProvideFileOps provides the toolkit rooted at the destination root, so
// manual operations work over the same tree that moves land in.
func ProvideFileOps(i do.Injector) (*fileops.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return fileops.New(log.Logger, cfg.Mover.DestinationRoot)
}
