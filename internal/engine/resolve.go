package engine

import (
	"errors"
	"sort"

	"github.com/lotar-dev/lotar/internal/anchor"
	"github.com/lotar-dev/lotar/internal/rewrite"
	"github.com/lotar-dev/lotar/internal/scanner"
	"github.com/lotar-dev/lotar/internal/task"
)

// pendingAnchor is an anchor mutation held back until the file's edits are
// safely on disk, so source and task state cannot diverge on a failed write.
type pendingAnchor struct {
	taskKey string
	line    int
}

// processFile scans one file, resolves every candidate, batches the
// resulting edits into a single write pass, and only then delivers the
// file's anchor mutations.
func (e *Engine) processFile(item workItem, scanOpts scanner.Options, rec *anchor.Reconciler) {
	cands, err := scanner.ScanFile(item.path, scanOpts)
	if errors.Is(err, scanner.ErrNoGrammar) {
		return
	}
	if err != nil {
		if !errors.Is(err, scanner.ErrBinary) {
			e.warn(item.path, err)
		}
		e.count(func(s *Summary) { s.FilesSkipped++ })
		return
	}
	e.count(func(s *Summary) { s.FilesScanned++ })
	if len(cands) == 0 {
		return
	}

	edits, anchors := e.resolveAll(item, cands)

	if e.opts.DryRun {
		return
	}

	changed, err := rewrite.Apply(item.path, edits)
	if err != nil {
		// Edits rolled back by the atomic write; withholding the anchors
		// keeps task state consistent with the unchanged source.
		e.warn(item.path, err)
		e.count(func(s *Summary) { s.Unresolved += len(anchors) })
		return
	}
	if changed {
		e.count(func(s *Summary) { s.FilesChanged++ })
	}

	for _, pa := range anchors {
		moved, err := e.store.AppendCodeAnchor(pa.taskKey, item.rel, pa.line)
		if err != nil {
			e.warn(item.rel, err)
			e.count(func(s *Summary) { s.Unresolved++ })
			continue
		}
		rec.MarkConfirmed(pa.taskKey, item.rel, pa.line, moved)
	}
}

// resolveAll maps candidates to edits and pending anchors. Candidates come
// in source order; edits on a shared line are applied to the evolving line
// text with a column shift so two markers on one line both land.
func (e *Engine) resolveAll(item workItem, cands []scanner.Candidate) ([]rewrite.Edit, []pendingAnchor) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Line == cands[j].Line {
			return cands[i].Column < cands[j].Column
		}
		return cands[i].Line < cands[j].Line
	})

	lineText := make(map[int]string)
	lineShift := make(map[int]int)
	var edits []rewrite.Edit
	var anchors []pendingAnchor

	setLine := func(line int, text string) {
		lineText[line] = text
		for i := range edits {
			if edits[i].Line == line {
				edits[i].NewText = text
				return
			}
		}
		edits = append(edits, rewrite.Edit{Line: line, NewText: text})
	}
	current := func(c *scanner.Candidate) string {
		if text, ok := lineText[c.Line]; ok {
			return text
		}
		return c.Text
	}

	for i := range cands {
		c := &cands[i]
		if c.Mention {
			e.count(func(s *Summary) { s.Mentions++ })
		} else {
			e.count(func(s *Summary) { s.Markers++ })
		}

		switch {
		case c.Key != "" && e.store.Exists(c.Key):
			// ConfirmAnchor
			anchors = append(anchors, pendingAnchor{taskKey: c.Key, line: c.Line})

		case c.Key != "":
			// PruneStaleKey: the key resolves to nothing, clean the line
			// when stripping is enabled, otherwise leave it alone.
			if !e.cfg.Scan.StripAttributes {
				continue
			}
			before := current(c)
			after := rewrite.StripKey(before, c.Key)
			if after == before {
				continue
			}
			setLine(c.Line, after)
			lineShift[c.Line] += len(after) - len(before)
			e.count(func(s *Summary) { s.KeysStripped++ })

		case c.SignalWord != "" && e.opts.Create:
			// CreateAndAnchor
			if e.opts.DryRun {
				e.count(func(s *Summary) { s.TasksCreated++; s.KeysInserted++ })
				continue
			}
			title := c.Title()
			if title == "" {
				title = c.SignalWord
			}
			key, err := e.store.Create(task.Seed{Title: title, Fields: c.Attributes})
			if err != nil {
				e.warn(item.rel, err)
				e.count(func(s *Summary) { s.Unresolved++ })
				continue
			}
			before := current(c)
			after := rewrite.InsertKey(before, c.Column+lineShift[c.Line], c.SignalWord, key, e.cfg.Scan.InsertFormat)
			setLine(c.Line, after)
			lineShift[c.Line] += len(after) - len(before)
			anchors = append(anchors, pendingAnchor{taskKey: key, line: c.Line})
			e.count(func(s *Summary) { s.TasksCreated++; s.KeysInserted++ })

		default:
			// Ignore: creation disabled or nothing actionable.
		}
	}
	return edits, anchors
}

func (e *Engine) count(f func(*Summary)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(&e.summary)
}
