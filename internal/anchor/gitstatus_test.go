package anchor

import (
	"context"
	"testing"
)

func TestParseRenames(t *testing.T) {
	porcelain := "" +
		" M internal/scan/scan.go\n" +
		"R  old/name.go -> new/name.go\n" +
		"RM lib/a.py -> lib/b.py\n" +
		"?? untracked.txt\n" +
		"A  added.go\n"

	got := ParseRenames(porcelain)
	if len(got) != 2 {
		t.Fatalf("expected 2 renames, got %v", got)
	}
	if got["old/name.go"] != "new/name.go" {
		t.Fatalf("missing simple rename: %v", got)
	}
	if got["lib/a.py"] != "lib/b.py" {
		t.Fatalf("missing rename+modify: %v", got)
	}
}

func TestParseRenames_QuotedPaths(t *testing.T) {
	got := ParseRenames(`R  "old name.go" -> "new name.go"` + "\n")
	if got["old name.go"] != "new name.go" {
		t.Fatalf("quoted paths not handled: %v", got)
	}
}

func TestParseRenames_Empty(t *testing.T) {
	if got := ParseRenames(""); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestDetectRenames_OutsideGitTree(t *testing.T) {
	// A temp dir is not a repository; detection must degrade to an empty
	// map rather than an error.
	got := DetectRenames(context.Background(), t.TempDir())
	if len(got) != 0 {
		t.Fatalf("expected no renames outside git, got %v", got)
	}
}
