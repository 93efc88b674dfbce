package main

import (
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/add0794/automated-file-mover/internal/config"
	"github.com/add0794/automated-file-mover/internal/di"
	"github.com/add0794/automated-file-mover/internal/fileops"
)

// withFileOps builds the container, hands the toolkit to fn, and tears the
// container down again. Toolkit commands never touch the watcher or the
// journal, so construction stays cheap.
func withFileOps(flags config.Flags, fn func(ops *fileops.Manager) error) error {
	injector := di.NewContainer(flags)
	defer func() { _ = injector.Shutdown() }()

	ops, err := do.Invoke[*fileops.Manager](injector)
	if err != nil {
		return err
	}
	return fn(ops)
}

func newCreateFileCmd(flags *config.Flags) *cobra.Command {
	var text, remove string
	cmd := &cobra.Command{
		Use:   "create-file <name>",
		Short: "Create a file under the destination root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				path, err := ops.CreateFile(args[0], text, remove)
				if err != nil {
					return err
				}
				cmd.Printf("created file %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "file content")
	cmd.Flags().StringVar(&remove, "remove", "", "characters to strip from the content")
	return cmd
}

func newCreateFolderCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "create-folder <name>",
		Short: "Create a folder under the destination root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				path, err := ops.CreateFolder(args[0])
				if err != nil {
					return err
				}
				cmd.Printf("created folder %s\n", path)
				return nil
			})
		},
	}
}

func newMoveCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <source> <destination>",
		Short: "Move a file or folder",
		Long: `Moves a file or folder under the destination root. A destination naming
an existing folder moves the source inside it. Existing targets are never
overwritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				path, err := ops.Move(args[0], args[1])
				if err != nil {
					return err
				}
				cmd.Printf("moved to %s\n", path)
				return nil
			})
		},
	}
}

func newRenameCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a file or folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				path, err := ops.Rename(args[0], args[1])
				if err != nil {
					return err
				}
				cmd.Printf("renamed to %s\n", path)
				return nil
			})
		},
	}
}

func newCopyCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <source> <destination>",
		Short: "Copy a file or folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				path, err := ops.Copy(args[0], args[1])
				if err != nil {
					return err
				}
				cmd.Printf("copied to %s\n", path)
				return nil
			})
		},
	}
}

func newZipCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "zip <folder>",
		Short: "Archive a folder into a sibling .zip file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				path, err := ops.Zip(args[0])
				if err != nil {
					return err
				}
				cmd.Printf("archived to %s\n", path)
				return nil
			})
		},
	}
}

func newDeleteCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a file or folder, folders recursively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				if err := ops.Delete(args[0]); err != nil {
					return err
				}
				cmd.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newViewCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "view <name>",
		Short: "Print a file's contents or list a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFileOps(*flags, func(ops *fileops.Manager) error {
				content, err := ops.View(args[0])
				if err != nil {
					return err
				}
				cmd.Println(content)
				return nil
			})
		},
	}
}
