package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/logger"
	"github.com/add0794/automated-file-mover/internal/notify"
)

const (
	// Each sink delivers at most notifyBurst notifications back to back;
	// after that they are spaced notifyInterval apart and excess is dropped.
	notifyInterval = 10 * time.Second
	notifyBurst    = 3
)

// NotifierHandle wraps the dispatcher and owns the D-Bus connection of the
// desktop sink, when one is active.
type NotifierHandle struct {
	*notify.Dispatcher
	desktop *notify.Desktop
}

// Shutdown implements do.Shutdownable.
func (h *NotifierHandle) Shutdown() error {
	if h.desktop != nil {
		return h.desktop.Close()
	}
	return nil
}

// ProvideNotifier assembles the notification dispatcher from the sinks the
// configuration enables. An unreachable session bus is not fatal; the
// daemon runs headless with the desktop sink dropped.
func ProvideNotifier(i do.Injector) (*NotifierHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var sinks []notify.Sink
	var desktop *notify.Desktop

	if cfg.Notify.Desktop {
		d, err := notify.NewDesktop(log.Logger)
		if err != nil {
			log.Warn("desktop notifications unavailable", "error", err)
		} else {
			desktop = d
			sinks = append(sinks, d)
		}
	}

	if cfg.Notify.Email {
		sinks = append(sinks, notify.NewEmail(
			cfg.Notify.SMTPHost,
			cfg.Notify.SMTPPort,
			cfg.Notify.EmailSender,
			cfg.Notify.EmailPassword,
			cfg.Notify.EmailRecipient,
			log.Logger,
		))
	}

	return &NotifierHandle{
		Dispatcher: notify.NewDispatcher(sinks, notifyInterval, notifyBurst, log.Logger),
		desktop:    desktop,
	}, nil
}
