package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lotar-dev/lotar/internal/anchor"
	"github.com/lotar-dev/lotar/internal/config"
	"github.com/lotar-dev/lotar/internal/ignore"
	"github.com/lotar-dev/lotar/internal/scanner"
	"github.com/lotar-dev/lotar/internal/task"
	"github.com/lotar-dev/lotar/internal/walker"
)

// Options are the per-invocation scan switches.
type Options struct {
	Roots    []string // scan roots; defaults to the project root
	Create   bool     // mint tasks for markers without a key
	Reanchor bool     // cross-file anchor pruning at session end
	DryRun   bool     // report without writing files or tasks
	Jobs     int      // worker count; <=0 means GOMAXPROCS
}

// Summary is the per-run report rendered by the CLI as text or JSON.
type Summary struct {
	FilesScanned     int `json:"files_scanned"`
	FilesSkipped     int `json:"files_skipped"`
	Markers          int `json:"markers"`
	Mentions         int `json:"mentions"`
	TasksCreated     int `json:"tasks_created"`
	KeysInserted     int `json:"keys_inserted"`
	KeysStripped     int `json:"keys_stripped"`
	FilesChanged     int `json:"files_changed"`
	Unresolved       int `json:"unresolved"`
	AnchorsConfirmed int `json:"anchors_confirmed"`
	AnchorsDrifted   int `json:"anchors_drifted"`
	AnchorsRenamed   int `json:"anchors_renamed"`
	AnchorsMissing   int `json:"anchors_missing"`
	AnchorsPruned    int `json:"anchors_pruned"`
}

// Engine runs one scan session: walk, scan, resolve, rewrite, reconcile.
type Engine struct {
	root  string
	cfg   *config.Config
	store *task.Store
	opts  Options
	warn  func(path string, err error)

	mu      sync.Mutex
	summary Summary
}

// New builds an engine rooted at the project directory. warn defaults to
// stderr logging.
func New(root string, cfg *config.Config, store *task.Store, opts Options, warn func(string, error)) *Engine {
	if warn == nil {
		warn = func(path string, err error) {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", path, err)
		}
	}
	if len(opts.Roots) == 0 {
		opts.Roots = []string{root}
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	return &Engine{root: root, cfg: cfg, store: store, opts: opts, warn: warn}
}

type workItem struct {
	path string // absolute
	rel  string // anchor-facing, relative to the project root
}

// Run executes the session. Cancellation is cooperative at file
// boundaries: dispatch stops, in-flight files finish their writes.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	filter, err := ignore.LoadFilter(e.root)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}
	renames := anchor.DetectRenames(ctx, e.root)
	rec := anchor.NewReconciler(e.store, e.root, renames, e.cfg.Scan.DriftRadius, e.warn)

	scanOpts := scanner.Options{
		SignalWords:    e.cfg.Words(),
		TicketPatterns: e.cfg.TicketRegexps(),
		EnableMentions: e.cfg.Scan.EnableMentions,
	}

	items := make(chan workItem)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(items)
		w := walker.New(e.root, filter, e.warn)
		return w.Walk(e.opts.Roots, func(path, rel string) error {
			if gctx.Err() != nil {
				// Stop dispatching; workers drain what they already hold.
				return walker.ErrStopped
			}
			select {
			case items <- workItem{path: path, rel: e.relToRoot(path)}:
				return nil
			case <-gctx.Done():
				return walker.ErrStopped
			}
		})
	})

	for i := 0; i < e.opts.Jobs; i++ {
		g.Go(func() error {
			for item := range items {
				e.processFile(item, scanOpts, rec)
			}
			return nil
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, walker.ErrStopped) {
		return nil, err
	}
	stopped := errors.Is(err, walker.ErrStopped)

	if !e.opts.DryRun && !stopped {
		out, err := rec.Finalize(e.opts.Reanchor)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile anchors: %w", err)
		}
		e.mu.Lock()
		e.summary.AnchorsConfirmed += out.Confirmed
		e.summary.AnchorsDrifted += out.Drifted
		e.summary.AnchorsRenamed += out.Renamed
		e.summary.AnchorsMissing += out.Missing
		e.summary.AnchorsPruned += out.Pruned
		e.mu.Unlock()
	}

	summary := e.snapshot()
	if stopped {
		return &summary, ctx.Err()
	}
	return &summary, nil
}

func (e *Engine) snapshot() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// relToRoot maps a walked file to the path anchors are recorded under:
// project-relative for files inside the project, absolute otherwise.
func (e *Engine) relToRoot(path string) string {
	p, err := filepath.Rel(e.root, path)
	if err != nil || strings.HasPrefix(p, "..") {
		return path
	}
	return filepath.ToSlash(p)
}
