package anchor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lotar-dev/lotar/internal/task"
)

// TaskStore is the slice of the task collaborator the reconciler needs.
type TaskStore interface {
	List() ([]*task.Task, error)
	CodeAnchors(key string) ([]task.Reference, error)
	UpdateCodeAnchor(key, oldFile string, oldLine int, newFile string, newLine int) error
	RemoveCodeAnchor(key, file string, line int) error
}

// State classifies one tracked (task, file) anchor after reconciliation.
type State int

const (
	Confirmed State = iota
	Drifted
	Missing
	Renamed
)

func (s State) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Drifted:
		return "drifted"
	case Missing:
		return "missing"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Outcome aggregates reconciliation counts for the scan summary.
type Outcome struct {
	Confirmed int
	Drifted   int
	Renamed   int
	Missing   int
	Pruned    int
}

type pairKey struct {
	taskKey string
	file    string
}

type confirmation struct {
	line  int
	order int
	moved bool
}

// Reconciler tracks which anchors were re-confirmed during a scan session
// and, at session end, re-localizes or prunes the rest. It is safe for use
// from concurrent scan workers.
type Reconciler struct {
	store   TaskStore
	root    string
	renames map[string]string
	radius  int
	warn    func(path string, err error)

	mu        sync.Mutex
	confirmed map[pairKey]confirmation
	order     int
}

// NewReconciler builds a session-scoped reconciler. renames may be empty
// (non-git trees); radius bounds the nearby-window search.
func NewReconciler(store TaskStore, root string, renames map[string]string, radius int, warn func(string, error)) *Reconciler {
	if warn == nil {
		warn = func(string, error) {}
	}
	return &Reconciler{
		store:     store,
		root:      root,
		renames:   renames,
		radius:    radius,
		warn:      warn,
		confirmed: make(map[pairKey]confirmation),
	}
}

// MarkConfirmed records that this session saw the task's key on the given
// line of file. moved flags that the stored anchor sat on a different line
// before this scan settled it, i.e. the anchor drifted. Later marks for the
// same pair supersede earlier ones.
func (r *Reconciler) MarkConfirmed(taskKey, file string, line int, moved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order++
	r.confirmed[pairKey{taskKey: taskKey, file: file}] = confirmation{line: line, order: r.order, moved: moved}
}

// Finalize runs the tree-wide pass over every task anchor that was not
// reconfirmed during the scan: rename remap first, then content check, then
// the nearby-window search. With reanchor set, only the most recently
// confirmed anchor per task survives across all files.
func (r *Reconciler) Finalize(reanchor bool) (Outcome, error) {
	var out Outcome
	tasks, err := r.store.List()
	if err != nil {
		return out, err
	}

	for _, t := range tasks {
		refs, err := r.store.CodeAnchors(t.Key)
		if err != nil {
			r.warn(t.Key, err)
			continue
		}
		for _, ref := range refs {
			r.reconcile(t.Key, ref, &out)
		}
		if reanchor {
			r.pruneToLatest(t.Key, &out)
		}
	}
	return out, nil
}

// reconcile settles one anchor that may or may not have been confirmed by
// the scan itself.
func (r *Reconciler) reconcile(taskKey string, ref task.Reference, out *Outcome) {
	key := pairKey{taskKey: taskKey, file: ref.File}

	r.mu.Lock()
	c, ok := r.confirmed[key]
	r.mu.Unlock()
	if ok {
		if c.moved || c.line != ref.Line {
			// The scan saw the key on a different line than the stored
			// anchor had; the store already settled it, count the drift.
			out.Drifted++
		} else {
			out.Confirmed++
		}
		return
	}

	file := ref.File
	if updated, renamed := r.renames[file]; renamed {
		if err := r.store.UpdateCodeAnchor(taskKey, ref.File, ref.Line, updated, ref.Line); err != nil {
			r.warn(ref.File, err)
			return
		}
		file = updated
		out.Renamed++
	}

	lines, err := r.readLines(file)
	if err != nil {
		// Transient read failure: keep the anchor, lose nothing.
		r.warn(file, err)
		return
	}

	if ref.Line >= 1 && ref.Line <= len(lines) && lineHasKey(lines[ref.Line-1], taskKey) {
		r.markInternal(taskKey, file, ref.Line)
		out.Confirmed++
		return
	}

	if found, ok := FindNearby(lines, ref.Line, taskKey, r.radius); ok {
		if err := r.store.UpdateCodeAnchor(taskKey, file, ref.Line, file, found); err != nil {
			r.warn(file, err)
			return
		}
		r.markInternal(taskKey, file, found)
		out.Drifted++
		return
	}

	// Missing: the anchor stays put unless a reanchor pass prunes it.
	out.Missing++
}

func (r *Reconciler) markInternal(taskKey, file string, line int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order++
	r.confirmed[pairKey{taskKey: taskKey, file: file}] = confirmation{line: line, order: r.order}
}

// pruneToLatest enforces reanchor semantics: at most one code anchor per
// task across all files, the one confirmed most recently this session.
// Without any confirmation this session the task is left untouched.
func (r *Reconciler) pruneToLatest(taskKey string, out *Outcome) {
	r.mu.Lock()
	latestFile := ""
	latestOrder := -1
	var latestLine int
	for key, c := range r.confirmed {
		if key.taskKey != taskKey {
			continue
		}
		if c.order > latestOrder {
			latestFile, latestOrder, latestLine = key.file, c.order, c.line
		}
	}
	r.mu.Unlock()
	if latestOrder < 0 {
		return
	}

	refs, err := r.store.CodeAnchors(taskKey)
	if err != nil {
		r.warn(taskKey, err)
		return
	}
	for _, ref := range refs {
		if ref.File == latestFile && ref.Line == latestLine {
			continue
		}
		if err := r.store.RemoveCodeAnchor(taskKey, ref.File, ref.Line); err != nil {
			r.warn(ref.File, err)
			continue
		}
		out.Pruned++
	}
}

func (r *Reconciler) readLines(rel string) ([]string, error) {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.root, rel)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}
