package rewrite

import (
	"fmt"
	"os"
	"strings"

	"github.com/lotar-dev/lotar/internal/config"
	"github.com/lotar-dev/lotar/internal/fileutil"
)

// Edit replaces the content of one line (1-based, terminator excluded).
type Edit struct {
	Line    int
	NewText string
}

// InsertKey returns the line with key written immediately after the signal
// word at col, using the configured format. All other bytes are preserved.
func InsertKey(line string, col int, signalWord, key, format string) string {
	end := col + len(signalWord)
	switch format {
	case config.InsertFormatSpace:
		return line[:end] + " " + key + line[end:]
	default:
		return line[:end] + "(" + key + ")" + line[end:]
	}
}

// StripKey removes the key and its decoration from the line: `TODO(KEY):`
// collapses to `TODO:`, a bare `KEY` mention is cut together with one
// adjacent space. Any attribute block following the key is removed too.
func StripKey(line, key string) string {
	idx := strings.Index(line, key)
	if idx < 0 {
		return line
	}
	start, end := idx, idx+len(key)

	// Absorb a (KEY) wrapper.
	if start > 0 && line[start-1] == '(' && end < len(line) && line[end] == ')' {
		start--
		end++
	}
	// Absorb a following attribute block.
	rest := line[end:]
	trimmed := strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(trimmed, "[") {
		if closeIdx := strings.IndexByte(trimmed, ']'); closeIdx >= 0 {
			end += len(rest) - len(trimmed) + closeIdx + 1
		}
	}
	// Collapse one leftover space so `TODO KEY:` becomes `TODO:`.
	if start > 0 && line[start-1] == ' ' && end < len(line) && (line[end] == ':' || line[end] == ' ') {
		start--
	}
	return line[:start] + line[end:]
}

// StripAttributes removes the first [key=value, ...] block from the line,
// together with one leading space, leaving everything else untouched.
func StripAttributes(line string) string {
	open := strings.IndexByte(line, '[')
	if open < 0 {
		return line
	}
	closeIdx := strings.IndexByte(line[open:], ']')
	if closeIdx < 0 {
		return line
	}
	start := open
	if start > 0 && line[start-1] == ' ' {
		start--
	}
	return line[:start] + line[open+closeIdx+1:]
}

// Apply batches all edits for one file into a single read-modify-write
// pass. Line terminators and untouched lines are preserved byte-for-byte;
// when the edited content equals the original, no write happens at all and
// the file's timestamp is left alone. The write is atomic, so a failure
// leaves the original file intact.
func Apply(path string, edits []Edit) (changed bool, err error) {
	if len(edits) == 0 {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines, terms := splitKeepTerminators(string(data))
	for _, e := range edits {
		if e.Line < 1 || e.Line > len(lines) {
			return false, fmt.Errorf("edit out of range: %s:%d", path, e.Line)
		}
		lines[e.Line-1] = e.NewText
	}

	var b strings.Builder
	for i, line := range lines {
		b.WriteString(line)
		b.WriteString(terms[i])
	}
	out := b.String()
	if out == string(data) {
		return false, nil
	}
	if err := fileutil.WriteAtomic(path, []byte(out)); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// splitKeepTerminators separates content lines from their terminators so a
// file mixing \n and \r\n endings round-trips exactly.
func splitKeepTerminators(text string) (lines []string, terms []string) {
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '\n' {
			continue
		}
		line := text[start:i]
		term := "\n"
		if strings.HasSuffix(line, "\r") {
			line = line[:len(line)-1]
			term = "\r\n"
		}
		lines = append(lines, line)
		terms = append(terms, term)
		start = i + 1
	}
	if start <= len(text) {
		lines = append(lines, text[start:])
		terms = append(terms, "")
	}
	return lines, terms
}
