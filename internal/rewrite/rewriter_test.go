package rewrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lotar-dev/lotar/internal/config"
)

func TestInsertKey(t *testing.T) {
	cases := []struct {
		line   string
		col    int
		word   string
		format string
		want   string
	}{
		{
			line: "\t// TODO: fix retry logic", col: 4, word: "TODO",
			format: config.InsertFormatParen,
			want:   "\t// TODO(PROJ-7): fix retry logic",
		},
		{
			line: "# FIXME handle nil", col: 2, word: "FIXME",
			format: config.InsertFormatSpace,
			want:   "# FIXME PROJ-7 handle nil",
		},
		{
			line: "code() // TODO trailing", col: 10, word: "TODO",
			format: config.InsertFormatParen,
			want:   "code() // TODO(PROJ-7) trailing",
		},
	}
	for _, tc := range cases {
		got := InsertKey(tc.line, tc.col, tc.word, "PROJ-7", tc.format)
		if got != tc.want {
			t.Fatalf("InsertKey(%q): expected %q, got %q", tc.line, tc.want, got)
		}
	}
}

func TestStripKey(t *testing.T) {
	cases := []struct {
		line string
		key  string
		want string
	}{
		{line: "// TODO(PROJ-7): fix retry", key: "PROJ-7", want: "// TODO: fix retry"},
		{line: "// TODO PROJ-7: fix retry", key: "PROJ-7", want: "// TODO: fix retry"},
		{line: "// see PROJ-7 for details", key: "PROJ-7", want: "// see for details"},
		{line: "// TODO(PROJ-7) [prio=high]: fix", key: "PROJ-7", want: "// TODO: fix"},
		{line: "// no key here", key: "PROJ-7", want: "// no key here"},
	}
	for _, tc := range cases {
		got := StripKey(tc.line, tc.key)
		if got != tc.want {
			t.Fatalf("StripKey(%q): expected %q, got %q", tc.line, tc.want, got)
		}
	}
}

func TestStripAttributes(t *testing.T) {
	got := StripAttributes("// TODO(PROJ-7) [prio=high, due=friday]: fix")
	want := "// TODO(PROJ-7): fix"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := StripAttributes("// plain line"); got != "// plain line" {
		t.Fatalf("line without attributes changed: %q", got)
	}
}

func TestApply_BatchedMinimalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	original := "package x\r\n// TODO: a\n// FIXME: b\nfunc f() {}\n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	changed, err := Apply(path, []Edit{
		{Line: 2, NewText: "// TODO(PROJ-1): a"},
		{Line: 3, NewText: "// FIXME(PROJ-2): b"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Fatalf("expected a write")
	}

	data, _ := os.ReadFile(path)
	want := "package x\r\n// TODO(PROJ-1): a\n// FIXME(PROJ-2): b\nfunc f() {}\n"
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, data)
	}
}

func TestApply_NoOpSkipsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	if err := os.WriteFile(path, []byte("// TODO(PROJ-1): a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	changed, err := Apply(path, []Edit{{Line: 1, NewText: "// TODO(PROJ-1): a"}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Fatalf("identical edit must not write")
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatalf("timestamp changed on no-op")
	}
}

func TestApply_MissingNewlineAtEOFPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	if err := os.WriteFile(path, []byte("// TODO: x"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := Apply(path, []Edit{{Line: 1, NewText: "// TODO(PROJ-3): x"}})
	if err != nil || !changed {
		t.Fatalf("Apply: changed=%v err=%v", changed, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "// TODO(PROJ-3): x" {
		t.Fatalf("trailing newline invented: %q", data)
	}
}

func TestApply_OutOfRangeEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	if err := os.WriteFile(path, []byte("one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Apply(path, []Edit{{Line: 9, NewText: "nope"}}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "one\n" {
		t.Fatalf("file mutated on failed apply: %q", data)
	}
}
