package anchor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lotar-dev/lotar/internal/task"
)

func setup(t *testing.T) (string, *task.Store) {
	t.Helper()
	root := t.TempDir()
	store, err := task.Open(root, "PROJ")
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFinalize_ConfirmedInPlace(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	writeFile(t, root, "a.go", "x\n// TODO("+key+"): keep\ny\n")
	store.AppendCodeAnchor(key, "a.go", 2)

	r := NewReconciler(store, root, nil, 25, nil)
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Confirmed != 1 || out.Drifted != 0 || out.Missing != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 || refs[0].Line != 2 {
		t.Fatalf("anchor should be untouched: %+v", refs)
	}
}

func TestFinalize_DriftUpdatesLine(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	// Three lines inserted above the anchored line.
	content := "pad\npad\npad\nx\n// TODO(" + key + "): drifted\n"
	writeFile(t, root, "a.go", content)
	store.AppendCodeAnchor(key, "a.go", 2)

	r := NewReconciler(store, root, nil, 25, nil)
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Drifted != 1 {
		t.Fatalf("expected one drifted anchor, got %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 || refs[0].Line != 5 {
		t.Fatalf("anchor not re-localized: %+v", refs)
	}
}

func TestFinalize_LongerKeyOfOtherTaskNotCaptured(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"}) // PROJ-1
	// PROJ-10 sits inside the drift window; it belongs to a different
	// task and must not capture PROJ-1's anchor.
	writeFile(t, root, "a.go", "x\n// TODO("+key+"0): other task\nx\n")
	store.AppendCodeAnchor(key, "a.go", 3)

	r := NewReconciler(store, root, nil, 25, nil)
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Missing != 1 || out.Drifted != 0 || out.Confirmed != 0 {
		t.Fatalf("expected missing, got %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 || refs[0].Line != 3 {
		t.Fatalf("anchor should be untouched: %+v", refs)
	}
}

func TestFinalize_MissingKeptWithoutReanchor(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	writeFile(t, root, "a.go", strings.Repeat("x\n", 10))
	store.AppendCodeAnchor(key, "a.go", 4)

	r := NewReconciler(store, root, nil, 25, nil)
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Missing != 1 {
		t.Fatalf("expected one missing anchor, got %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 || refs[0].Line != 4 {
		t.Fatalf("missing anchor must be kept: %+v", refs)
	}
}

func TestFinalize_RenameRemapsBeforeSearch(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	writeFile(t, root, "new/name.go", "// TODO("+key+"): moved file\n")
	store.AppendCodeAnchor(key, "old/name.go", 1)

	renames := map[string]string{"old/name.go": "new/name.go"}
	r := NewReconciler(store, root, renames, 25, nil)
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Renamed != 1 || out.Missing != 0 {
		t.Fatalf("expected rename without missing, got %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 || refs[0].File != "new/name.go" || refs[0].Line != 1 {
		t.Fatalf("anchor not remapped: %+v", refs)
	}
}

func TestFinalize_RenamePlusDrift(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	writeFile(t, root, "b.go", "pad\npad\n// TODO("+key+"): x\n")
	store.AppendCodeAnchor(key, "a.go", 1)

	r := NewReconciler(store, root, map[string]string{"a.go": "b.go"}, 25, nil)
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Renamed != 1 || out.Drifted != 1 {
		t.Fatalf("expected renamed+drifted, got %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if refs[0].File != "b.go" || refs[0].Line != 3 {
		t.Fatalf("anchor not remapped and re-localized: %+v", refs)
	}
}

func TestFinalize_UnreadableFileKeepsAnchor(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	store.AppendCodeAnchor(key, "gone/never.go", 7)

	var warned []string
	r := NewReconciler(store, root, nil, 25, func(path string, err error) {
		warned = append(warned, path)
	})
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Missing != 0 {
		t.Fatalf("read failure must not count as missing: %+v", out)
	}
	if len(warned) != 1 {
		t.Fatalf("expected one warning, got %v", warned)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 || refs[0].Line != 7 {
		t.Fatalf("anchor lost on transient failure: %+v", refs)
	}
}

func TestFinalize_ReanchorKeepsOnlyLatest(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	writeFile(t, root, "a.go", "// TODO("+key+"): one\n")
	writeFile(t, root, "b.go", "// TODO("+key+"): two\n")
	store.AppendCodeAnchor(key, "a.go", 1)
	store.AppendCodeAnchor(key, "b.go", 1)
	store.AppendCodeAnchor(key, "stale.go", 3)

	r := NewReconciler(store, root, nil, 25, nil)
	// The scan confirmed a.go first, then b.go.
	r.MarkConfirmed(key, "a.go", 1, false)
	r.MarkConfirmed(key, "b.go", 1, false)

	out, err := r.Finalize(true)
	if err != nil {
		t.Fatal(err)
	}
	if out.Pruned != 2 {
		t.Fatalf("expected two pruned anchors, got %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 || refs[0].File != "b.go" {
		t.Fatalf("expected only most recent anchor to survive: %+v", refs)
	}
}

func TestFinalize_ReanchorWithoutConfirmationLeavesTask(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	store.AppendCodeAnchor(key, "gone.go", 2)

	r := NewReconciler(store, root, nil, 25, nil)
	out, err := r.Finalize(true)
	if err != nil {
		t.Fatal(err)
	}
	if out.Pruned != 0 {
		t.Fatalf("no confirmation, nothing to prune against: %+v", out)
	}
	refs, _ := store.CodeAnchors(key)
	if len(refs) != 1 {
		t.Fatalf("anchors must survive an unconfirmed reanchor pass: %+v", refs)
	}
}

func TestFinalize_ScanConfirmedSkipsFileRead(t *testing.T) {
	root, store := setup(t)
	key, _ := store.Create(task.Seed{Title: "t"})
	store.AppendCodeAnchor(key, "a.go", 2)

	r := NewReconciler(store, root, nil, 25, nil)
	r.MarkConfirmed(key, "a.go", 2, false)

	// a.go does not exist on disk; a confirmed pair must not trigger a read.
	out, err := r.Finalize(false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Confirmed != 1 || out.Missing != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
