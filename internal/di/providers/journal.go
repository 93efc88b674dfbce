package providers

import (
	"github.com/samber/do/v2"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/journal"
	"github.com/add0794/automated-file-mover/internal/logger"
)

// JournalHandle wraps the journal with shutdown capability.
type JournalHandle struct {
	*journal.Journal
}

// Shutdown implements do.Shutdownable.
func (h *JournalHandle) Shutdown() error {
	return h.Close()
}

// ProvideJournal opens the durable move journal.
func ProvideJournal(i do.Injector) (*JournalHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	j, err := journal.Open(cfg.Journal.Path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Debug("journal opened", "path", cfg.Journal.Path)

	return &JournalHandle{Journal: j}, nil
}
