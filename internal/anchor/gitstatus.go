package anchor

import (
	"context"
	"os/exec"
	"strings"
)

// ParseRenames extracts old-path -> new-path pairs from `git status
// --porcelain` output. Lines look like:
//
//	R  old/name.go -> new/name.go
//
// Copies and plain modifications contribute nothing.
func ParseRenames(porcelain string) map[string]string {
	renames := make(map[string]string)
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 4 {
			continue
		}
		status, rest := line[:2], line[3:]
		if !strings.ContainsRune(status, 'R') {
			continue
		}
		old, updated, ok := strings.Cut(rest, " -> ")
		if !ok {
			continue
		}
		old = unquotePath(strings.TrimSpace(old))
		updated = unquotePath(strings.TrimSpace(updated))
		if old != "" && updated != "" {
			renames[old] = updated
		}
	}
	return renames
}

// unquotePath strips the quoting git applies to paths with spaces.
func unquotePath(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		return strings.ReplaceAll(p[1:len(p)-1], `\"`, `"`)
	}
	return p
}

// DetectRenames runs git status in root and returns the rename map. Outside
// a git working tree (or without git installed) it returns an empty map and
// no error; rename reconciliation is an enrichment, not a requirement.
func DetectRenames(ctx context.Context, root string) map[string]string {
	cmd := exec.CommandContext(ctx, "git", "-C", root, "status", "--porcelain")
	out, err := cmd.Output()
	if err != nil {
		return map[string]string{}
	}
	return ParseRenames(string(out))
}
