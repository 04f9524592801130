package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lotar-dev/lotar/internal/config"
	"github.com/lotar-dev/lotar/internal/engine"
	"github.com/lotar-dev/lotar/internal/task"
)

func RunScan(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}

	create, err := cmd.Flags().GetBool("create")
	if err != nil {
		return fmt.Errorf("failed to read --create flag: %w", err)
	}
	reanchor, _ := cmd.Flags().GetBool("reanchor")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")
	jobs, _ := cmd.Flags().GetInt("jobs")

	cfg, err := config.Load(rootPath)
	if err != nil {
		return err
	}
	store, err := task.Open(rootPath, cfg.Prefix)
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to resolve scan root %q: %w", arg, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return fmt.Errorf("failed to access scan root %q: %w", arg, err)
		}
		roots = append(roots, abs)
	}

	eng := engine.New(rootPath, cfg, store, engine.Options{
		Roots:    roots,
		Create:   create,
		Reanchor: reanchor,
		DryRun:   dryRun,
		Jobs:     jobs,
	}, nil)

	start := time.Now()
	summary, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(scanReport{
			Mode:       mode(create, reanchor, dryRun),
			RootPath:   rootPath,
			Summary:    *summary,
			DurationMS: time.Since(start).Milliseconds(),
		})
	}
	printScanText(summary, dryRun)
	return nil
}

type scanReport struct {
	Mode       string         `json:"mode"`
	RootPath   string         `json:"root_path"`
	Summary    engine.Summary `json:"summary"`
	DurationMS int64          `json:"duration_ms"`
}

func mode(create, reanchor, dryRun bool) string {
	switch {
	case dryRun:
		return "dry-run"
	case reanchor:
		return "reanchor"
	case create:
		return "create"
	default:
		return "scan"
	}
}

func printScanText(s *engine.Summary, dryRun bool) {
	if dryRun {
		fmt.Println("Dry run; no files or tasks were modified.")
	}
	fmt.Printf("Scanned %d files (%d skipped), found %d markers and %d mentions.\n",
		s.FilesScanned, s.FilesSkipped, s.Markers, s.Mentions)
	if s.TasksCreated > 0 || s.KeysInserted > 0 || s.KeysStripped > 0 {
		fmt.Printf("Created %d tasks, inserted %d keys, stripped %d stale keys across %d files.\n",
			s.TasksCreated, s.KeysInserted, s.KeysStripped, s.FilesChanged)
	}
	fmt.Printf("Anchors: %d confirmed, %d drifted, %d renamed, %d missing, %d pruned.\n",
		s.AnchorsConfirmed, s.AnchorsDrifted, s.AnchorsRenamed, s.AnchorsMissing, s.AnchorsPruned)
	if s.Unresolved > 0 {
		fmt.Printf("%d markers left unresolved; they will be retried on the next scan.\n", s.Unresolved)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
