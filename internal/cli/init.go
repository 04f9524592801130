package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/lotar-dev/lotar/internal/config"
	"github.com/lotar-dev/lotar/internal/fileutil"
)

const lotarignoreSeed = `# Paths excluded from lotar scans, gitignore syntax.
# .gitignore rules apply first; rules here win on conflict.
testdata/
`

func RunInit(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}

	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return fmt.Errorf("failed to read --prefix flag: %w", err)
	}
	if prefix == "" {
		prefix = derivePrefix(filepath.Base(rootPath))
	}

	cfg := config.Default()
	cfg.Prefix = prefix
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(rootPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := fileutil.WriteIfMissing(filepath.Join(rootPath, ".lotarignore"), []byte(lotarignoreSeed), 0o644); err != nil {
		return fmt.Errorf("failed to write .lotarignore: %w", err)
	}

	fmt.Printf("Initialized %s with task prefix %s\n", filepath.Join(rootPath, config.Dir), prefix)
	fmt.Println("Run 'lotar scan --create' to pick up existing TODO markers.")
	return nil
}

// derivePrefix turns a directory name into an uppercase task key prefix:
// "my-service" becomes MYSE. Falls back to TASK for unusable names.
func derivePrefix(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
		if b.Len() == 4 {
			break
		}
	}
	if b.Len() < 2 {
		return "TASK"
	}
	return b.String()
}
