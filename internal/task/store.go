package task

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lotar-dev/lotar/internal/fileutil"
)

// Reference is a pointer from a task to something outside the task file.
// Code anchors use Kind "code" and carry a file path plus line number.
type Reference struct {
	Kind string `yaml:"kind"`
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

const KindCode = "code"

// Task is one tracked work item, persisted as .lotar/tasks/<KEY>.yml.
type Task struct {
	Key        string            `yaml:"key"`
	Title      string            `yaml:"title"`
	Status     string            `yaml:"status"`
	Created    time.Time         `yaml:"created"`
	Fields     map[string]string `yaml:"fields,omitempty"`
	References []Reference       `yaml:"references,omitempty"`
}

// Seed carries the creation inputs harvested from a source comment.
type Seed struct {
	Title  string
	Fields map[string]string
}

const lockStripes = 32

// Store is the file-backed task collaborator. All mutations of one task are
// serialized through a striped lock keyed by task key, so concurrent scan
// workers touching the same task cannot interleave read-modify-write cycles.
type Store struct {
	dir    string
	prefix string

	seqMu sync.Mutex
	locks [lockStripes]sync.Mutex
}

// Open returns a store rooted at <root>/.lotar/tasks using the given key
// prefix for new tasks.
func Open(root, prefix string) (*Store, error) {
	dir := filepath.Join(root, ".lotar", "tasks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create task directory: %w", err)
	}
	return &Store{dir: dir, prefix: prefix}, nil
}

func (s *Store) lock(key string) *sync.Mutex {
	var h uint32
	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}
	return &s.locks[h%lockStripes]
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".yml")
}

// Exists reports whether a task with the key is stored.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Get loads one task by key.
func (s *Store) Get(key string) (*Task, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}
	var t Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task %s: %w", key, err)
	}
	return &t, nil
}

func (s *Store) save(t *Task) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", t.Key, err)
	}
	return fileutil.WriteAtomic(s.path(t.Key), data)
}

// Create mints the next key in the store's prefix sequence and persists a
// new task built from the seed.
func (s *Store) Create(seed Seed) (string, error) {
	key, err := s.nextKey()
	if err != nil {
		return "", err
	}
	t := &Task{
		Key:     key,
		Title:   seed.Title,
		Status:  "open",
		Created: time.Now().UTC(),
		Fields:  seed.Fields,
	}
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()
	if err := s.save(t); err != nil {
		return "", err
	}
	return key, nil
}

// nextKey advances the per-prefix sequence file and returns PREFIX-N.
func (s *Store) nextKey() (string, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	seqPath := filepath.Join(s.dir, s.prefix+".seq")
	n := 0
	if data, err := os.ReadFile(seqPath); err == nil {
		n, _ = strconv.Atoi(strings.TrimSpace(string(data)))
	} else if !os.IsNotExist(err) {
		return "", err
	}
	n++
	if err := fileutil.WriteAtomic(seqPath, []byte(strconv.Itoa(n)+"\n")); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", s.prefix, n), nil
}

// AppendCodeAnchor records a code anchor on the task, replacing any existing
// anchor for the same file so at most one anchor per (task, file) survives.
// Appending an anchor identical to the stored one is a no-op. The returned
// flag reports whether an anchor for this file existed on a different line,
// i.e. the anchor moved.
func (s *Store) AppendCodeAnchor(key, file string, line int) (moved bool, err error) {
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	t, err := s.Get(key)
	if err != nil {
		return false, err
	}
	kept := t.References[:0]
	sameLine := false
	removed := 0
	for _, ref := range t.References {
		if ref.Kind == KindCode && ref.File == file {
			if ref.Line == line {
				sameLine = true
			} else {
				moved = true
			}
			removed++
			continue
		}
		kept = append(kept, ref)
	}
	if sameLine && removed == 1 {
		return false, nil // stored state already matches
	}
	t.References = append(kept, Reference{Kind: KindCode, File: file, Line: line})
	return moved, s.save(t)
}

// RemoveCodeAnchor drops the anchor for (file, line) from the task.
func (s *Store) RemoveCodeAnchor(key, file string, line int) error {
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	t, err := s.Get(key)
	if err != nil {
		return err
	}
	kept := t.References[:0]
	for _, ref := range t.References {
		if ref.Kind == KindCode && ref.File == file && ref.Line == line {
			continue
		}
		kept = append(kept, ref)
	}
	if len(kept) == len(t.References) {
		return nil
	}
	t.References = kept
	return s.save(t)
}

// UpdateCodeAnchor rewrites one anchor in place, used for drift and rename
// remapping, preserving the rest of the reference list.
func (s *Store) UpdateCodeAnchor(key, oldFile string, oldLine int, newFile string, newLine int) error {
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	t, err := s.Get(key)
	if err != nil {
		return err
	}
	changed := false
	for i, ref := range t.References {
		if ref.Kind == KindCode && ref.File == oldFile && ref.Line == oldLine {
			t.References[i].File = newFile
			t.References[i].Line = newLine
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(t)
}

// CodeAnchors returns the task's code references.
func (s *Store) CodeAnchors(key string) ([]Reference, error) {
	t, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	var refs []Reference
	for _, ref := range t.References {
		if ref.Kind == KindCode {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// List returns all stored tasks sorted by key.
func (s *Store) List() ([]*Task, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var tasks []*Task
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		t, err := s.Get(strings.TrimSuffix(name, ".yml"))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return keyLess(tasks[i].Key, tasks[j].Key) })
	return tasks, nil
}

// keyLess orders PREFIX-N keys by prefix then numerically.
func keyLess(a, b string) bool {
	pa, na := splitKey(a)
	pb, nb := splitKey(b)
	if pa != pb {
		return pa < pb
	}
	return na < nb
}

func splitKey(key string) (string, int) {
	idx := strings.LastIndexByte(key, '-')
	if idx < 0 {
		return key, 0
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return key, 0
	}
	return key[:idx], n
}
