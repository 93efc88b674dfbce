package main

import (
	"github.com/spf13/cobra"

	"github.com/add0794/automated-file-mover/internal/config"
)

// NewRootCmd creates the root command and registers all subcommands. The
// global flags mirror the configuration surface; anything left empty
// falls through to environment variables, the .env file, and defaults.
func NewRootCmd() *cobra.Command {
	flags := &config.Flags{}

	rootCmd := &cobra.Command{
		Use:   "watchzone",
		Short: "Watch one folder and move whatever lands in it",
		Long: `watchzone observes a single directory for new files and folders. Each new
entry is held until it stops changing, then you are asked where it should
go. Moves are retried on transient failures, every outcome is recorded in
a durable journal, and a second interrupt abandons in-flight work.

The toolkit subcommands operate on the destination tree directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.WatchDir, "watch-dir", "", "directory to observe (default ~/WatchZone)")
	pf.StringVar(&flags.DestinationRoot, "destination-root", "", "root that destinations must stay under (default: home directory)")
	pf.StringVar(&flags.QuietPeriod, "quiet-period", "", "how long a path must stay unchanged before processing (default 2s)")
	pf.StringVar(&flags.MaxAttempts, "max-attempts", "", "retry budget per destination (default 3)")
	pf.StringVar(&flags.JournalPath, "journal-path", "", "journal directory (default ~/.watchzone/journal)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "debug, info, warn, or error (default info)")
	pf.StringVar(&flags.LogFormat, "log-format", "", "json or pretty (default: pretty on a terminal)")
	pf.StringVar(&flags.NotifyDesktop, "notify-desktop", "", "desktop notifications for completed moves: true or false")
	pf.StringVar(&flags.NotifyEmail, "notify-email", "", "email notifications for completed moves: true or false")
	pf.StringVar(&flags.EmailRecipient, "email-recipient", "", "address move notifications go to")
	pf.StringVar(&flags.EnvFile, "env-file", "", "path to a .env file (default: .env in the working directory)")

	rootCmd.AddCommand(newWatchCmd(flags))
	rootCmd.AddCommand(newHistoryCmd(flags))
	rootCmd.AddCommand(newCreateFileCmd(flags))
	rootCmd.AddCommand(newCreateFolderCmd(flags))
	rootCmd.AddCommand(newMoveCmd(flags))
	rootCmd.AddCommand(newRenameCmd(flags))
	rootCmd.AddCommand(newCopyCmd(flags))
	rootCmd.AddCommand(newZipCmd(flags))
	rootCmd.AddCommand(newDeleteCmd(flags))
	rootCmd.AddCommand(newViewCmd(flags))

	return rootCmd
}
