package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lotar-dev/lotar/internal/cli"
)

// chdir replaces t.Chdir, which requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := cli.NewRootCommand("test")
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestInitScanTasksFlow(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)

	if err := runCommand(t, "init", "--prefix", "PROJ"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".lotar", "config.yml")); err != nil {
		t.Fatalf("config not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".lotarignore")); err != nil {
		t.Fatalf(".lotarignore not created: %v", err)
	}

	src := filepath.Join(root, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "package src\n\n// TODO: fix retry logic\n"
	if err := os.WriteFile(filepath.Join(src, "retry.go"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runCommand(t, "scan", "--create"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(src, "retry.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "// TODO(PROJ-1): fix retry logic") {
		t.Fatalf("key not written back: %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, ".lotar", "tasks", "PROJ-1.yml")); err != nil {
		t.Fatalf("task file not created: %v", err)
	}

	// Re-scan must be a no-op on the source tree.
	before, _ := os.ReadFile(filepath.Join(src, "retry.go"))
	if err := runCommand(t, "scan", "--create"); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(src, "retry.go"))
	if string(before) != string(after) {
		t.Fatalf("second scan changed the file")
	}

	if err := runCommand(t, "tasks"); err != nil {
		t.Fatalf("tasks: %v", err)
	}
}

func TestScanInvalidConfigAborts(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)

	if err := os.MkdirAll(filepath.Join(root, ".lotar"), 0o755); err != nil {
		t.Fatal(err)
	}
	bad := "scan:\n  ticket_patterns: ['[broken']\n"
	if err := os.WriteFile(filepath.Join(root, ".lotar", "config.yml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runCommand(t, "scan"); err == nil {
		t.Fatalf("expected scan to abort on invalid ticket pattern")
	}
}

func TestScanExplicitRootArgument(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)

	if err := runCommand(t, "init", "--prefix", "PROJ"); err != nil {
		t.Fatalf("init: %v", err)
	}
	sub := filepath.Join(root, "svc")
	other := filepath.Join(root, "other")
	for _, dir := range []string{sub, other} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(sub, "a.go"), []byte("// TODO: in scope\n"), 0o644)
	os.WriteFile(filepath.Join(other, "b.go"), []byte("// TODO: out of scope\n"), 0o644)

	if err := runCommand(t, "scan", "--create", "svc"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	inScope, _ := os.ReadFile(filepath.Join(sub, "a.go"))
	if !strings.Contains(string(inScope), "PROJ-1") {
		t.Fatalf("scoped root not scanned: %q", inScope)
	}
	outOfScope, _ := os.ReadFile(filepath.Join(other, "b.go"))
	if strings.Contains(string(outOfScope), "PROJ-") {
		t.Fatalf("file outside scan root was modified: %q", outOfScope)
	}
}
