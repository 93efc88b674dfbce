package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/di"
	"github.com/add0794/automated-file-mover/internal/domain"
	"github.com/add0794/automated-file-mover/internal/journal"
	"github.com/add0794/automated-file-mover/internal/logger"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func newHistoryCmd(flags *config.Flags) *cobra.Command {
	var (
		sessionID string
		limit     int
		sessions  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the move journal",
		Long: `Prints recorded moves, newest first. With --session the records of one
watch session are shown in detection order; with --sessions the sessions
themselves are listed. The journal is opened read-only, so this works
while the daemon is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			injector := di.NewContainer(*flags)
			defer func() { _ = injector.Shutdown() }()

			cfg, err := do.Invoke[*config.Config](injector)
			if err != nil {
				return err
			}
			log := do.MustInvoke[*logger.Logger](injector)

			j, err := journal.OpenReadOnly(cfg.Journal.Path, log.Logger)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			switch {
			case sessions:
				return printSessions(ctx, cmd, j, limit)
			case sessionID != "":
				return printSessionRecords(ctx, cmd, j, sessionID)
			default:
				return printRecords(ctx, cmd, j, limit)
			}
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "show one session's records in detection order")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to print")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "list watch sessions instead of records")
	return cmd
}

func printRecords(ctx context.Context, cmd *cobra.Command, j *journal.Journal, limit int) error {
	records, err := j.ListRecords(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("no records yet")
		return nil
	}
	for _, r := range records {
		cmd.Println(formatRecord(r))
	}
	return nil
}

func printSessionRecords(ctx context.Context, cmd *cobra.Command, j *journal.Journal, sessionID string) error {
	session, err := j.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	cmd.Printf("session %s  started %s  watching %s\n\n",
		session.ID, session.StartedAt.Format(historyTimeLayout), session.WatchDir)

	records, err := j.RecordsBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("no records in this session")
		return nil
	}
	for _, r := range records {
		cmd.Println(formatRecord(r))
	}
	return nil
}

func printSessions(ctx context.Context, cmd *cobra.Command, j *journal.Journal, limit int) error {
	sessions, err := j.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		cmd.Println("no sessions yet")
		return nil
	}
	for _, s := range sessions {
		cmd.Printf("%s  started %s  watching %s\n",
			s.ID, s.StartedAt.Format(historyTimeLayout), s.WatchDir)
	}
	return nil
}

// formatRecord renders one journal record as a single line.
func formatRecord(r *domain.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-7s  %-6s  %s",
		r.Time.Format(historyTimeLayout), r.State, r.Kind, r.Source)
	if r.Destination != "" {
		fmt.Fprintf(&b, " -> %s", r.Destination)
	}
	if r.Attempts > 0 {
		fmt.Fprintf(&b, "  attempts=%d", r.Attempts)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "  error=%q", r.Error)
	}
	return b.String()
}
