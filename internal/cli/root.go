package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lotar",
		Short: "File-backed task tracking wired into source comments",
		Long: `Lotar keeps tasks next to your code. It scans source trees for TODO,
FIXME and other work markers, mints task keys, writes them back into the
comments, and tracks a durable code anchor for every task even as files
drift or get renamed.

Tasks live as YAML files under .lotar/ and can be version-controlled.`,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the .lotar/ directory in the current project",
		RunE:  RunInit,
	}
	initCmd.Flags().String("prefix", "", "Task key prefix (default: derived from directory name)")

	scanCmd := &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Scan source trees for work markers and reconcile code anchors",
		Args:  cobra.ArbitraryArgs,
		RunE:  RunScan,
	}
	scanCmd.Flags().Bool("create", false, "Create tasks for markers without a key and write keys back")
	scanCmd.Flags().Bool("reanchor", false, "Keep only the most recently confirmed anchor per task")
	scanCmd.Flags().Bool("dry-run", false, "Report what a scan would do without writing anything")
	scanCmd.Flags().Bool("json", false, "Print a machine-readable scan summary")
	scanCmd.Flags().IntP("jobs", "j", 0, "Scan workers (default: number of CPUs)")

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tracked tasks and their code anchors",
		RunE:  RunTasks,
	}
	tasksCmd.Flags().Bool("json", false, "Print machine-readable task list")

	rootCmd.AddCommand(initCmd, scanCmd, tasksCmd)
	rootCmd.Version = version
	return rootCmd
}

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}
