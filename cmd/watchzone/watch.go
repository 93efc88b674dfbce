package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/controller"
	"github.com/add0794/automated-file-mover/internal/di"
	"github.com/add0794/automated-file-mover/internal/domain"
	"github.com/add0794/automated-file-mover/internal/logger"
)

func newWatchCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the interactive watcher daemon",
		Long: `Observes the watch directory and prompts for a destination whenever a new
entry settles. Answer with a path to move it, press Enter to skip it, or
type exit to stop watching. Interrupt once to finish in-flight entries
and exit; interrupt again to abandon them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(*flags)
		},
	}
}

func runWatch(flags config.Flags) error {
	injector := di.NewContainer(flags)

	ctrl, err := do.Invoke[*controller.Controller](injector)
	if err != nil {
		return err
	}
	log := do.MustInvoke[*logger.Logger](injector)

	// The first signal drains, letting open dialogues and moves finish.
	// The second abandons whatever is still in flight.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		ctrl.Shutdown(domain.ShutdownBySignal)
		<-sigCh
		ctrl.Abort()
	}()

	runErr := ctrl.Run(context.Background())

	if err := injector.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
	}

	return runErr
}
