package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lotar-dev/lotar/internal/config"
	"github.com/lotar-dev/lotar/internal/task"
)

func RunTasks(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(rootPath)
	if err != nil {
		return err
	}
	store, err := task.Open(rootPath, cfg.Prefix)
	if err != nil {
		return err
	}
	tasks, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if asJSON {
		return printJSON(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks tracked yet. Run 'lotar scan --create' to pick up markers.")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%-10s %-8s %s\n", t.Key, t.Status, t.Title)
		for _, ref := range t.References {
			if ref.Kind == task.KindCode {
				fmt.Printf("           %s:%d\n", ref.File, ref.Line)
			}
		}
	}
	return nil
}
