package providers

import (
	"context"
	"os"

	"github.com/samber/do/v2"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/controller"
	"github.com/add0794/automated-file-mover/internal/logger"
	"github.com/add0794/automated-file-mover/internal/mover"
	"github.com/add0794/automated-file-mover/internal/resolver"
	"github.com/add0794/automated-file-mover/internal/watcher"
)

// WatcherHandle wraps the event source with its start context. Stop
// belongs to the controller, which calls it exactly once at the end of a
// session; Shutdown only releases the start goroutine.
type WatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideWatcher provides the running event source for the watch root,
// creating the root first if it does not exist yet.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Watch.Dir, 0o755); err != nil {
		return nil, err
	}

	w, err := watcher.New(log.Logger, watcher.Options{})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(cfg.Watch.Dir); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("event source stopped", "error", err)
		}
	}()

	return &WatcherHandle{Watcher: w, cancel: cancel}, nil
}

// ProvideFilter provides the eligibility filter for the watch root, with
// the default reserved names.
func ProvideFilter(i do.Injector) (*watcher.Filter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return watcher.NewFilter(cfg.Watch.Dir, nil), nil
}

// ProvideResolver provides the interactive terminal resolver on the
// process's stdin and stdout.
func ProvideResolver(i do.Injector) (resolver.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return resolver.NewTerminal(cfg.Mover.DestinationRoot, os.Stdin, os.Stdout), nil
}

// ProvideController assembles the watch pipeline. The mover is built here
// rather than in a provider of its own so its retry gate can observe the
// controller's drain state.
func ProvideController(i do.Injector) (*controller.Controller, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	watcherHandle := do.MustInvoke[*WatcherHandle](i)
	journalHandle := do.MustInvoke[*JournalHandle](i)
	filter := do.MustInvoke[*watcher.Filter](i)
	res := do.MustInvoke[resolver.Resolver](i)
	notifierHandle := do.MustInvoke[*NotifierHandle](i)

	// ctrl is assigned below. No retry can run before that: only the
	// controller invokes the mover.
	var ctrl *controller.Controller
	mv := mover.New(log.Logger, mover.Config{
		DestinationRoot: cfg.Mover.DestinationRoot,
		WatchDir:        cfg.Watch.Dir,
		MaxAttempts:     cfg.Mover.MaxAttempts,
		BackoffBase:     cfg.Mover.BackoffBase,
		BackoffCap:      cfg.Mover.BackoffCap,
		Draining:        func() bool { return ctrl != nil && ctrl.IsDraining() },
	})

	ctrl = controller.New(
		controller.Config{
			WatchDir:    cfg.Watch.Dir,
			QuietPeriod: cfg.Watch.QuietPeriod,
		},
		controller.Deps{
			Source:   watcherHandle.Watcher,
			Filter:   filter,
			Resolver: res,
			Mover:    mv,
			Journal:  journalHandle.Journal,
			Notifier: notifierHandle.Dispatcher,
			Logger:   log.Logger,
		},
	)

	return ctrl, nil
}
