package scanner

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lotar-dev/lotar/internal/grammar"
)

// Candidate is one work marker found in a comment span. A line containing
// two markers produces two candidates, distinguished by Column.
type Candidate struct {
	File       string
	Line       int // 1-based
	Column     int // 0-based byte offset of the marker within the line
	Text       string
	SignalWord string // empty for bare-key mentions
	Key        string // empty when no ticket key is present
	Mention    bool   // key found with no signal word
	Attributes map[string]string
}

// Options are the per-session scan knobs, resolved from configuration.
type Options struct {
	SignalWords    []string
	TicketPatterns []*regexp.Regexp
	EnableMentions bool
}

// ErrBinary marks a file skipped by the binary-content heuristic.
var ErrBinary = fmt.Errorf("binary content")

// ErrNoGrammar marks a file with no registered comment grammar. Such files
// are never opened and do not count as scanned.
var ErrNoGrammar = fmt.Errorf("no grammar for file")

const binarySniffLen = 8192

// IsBinary applies the content heuristic: a NUL byte in the head of the
// file, or bytes that do not decode as UTF-8.
func IsBinary(content []byte) bool {
	head := content
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	return !utf8.Valid(content)
}

// ScanFile reads a file and returns its marker candidates in source order.
// Files without a registered grammar report ErrNoGrammar; binary content is
// reported as ErrBinary. The sentinels let callers count scans and skips
// separately from a marker-free (empty) result.
func ScanFile(path string, opts Options) ([]Candidate, error) {
	g, ok := grammar.ForFile(path)
	if !ok {
		return nil, ErrNoGrammar
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if IsBinary(content) {
		return nil, ErrBinary
	}
	return ScanLines(path, SplitLines(string(content)), g, opts), nil
}

// SplitLines splits text into lines without terminators. The final entry is
// kept even when empty so line numbers match editors.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ScanLines finds marker candidates across all lines, tracking block
// comment state between lines. Lines are processed top to bottom so
// candidates come out in source order.
func ScanLines(file string, lines []string, g *grammar.Grammar, opts Options) []Candidate {
	var out []Candidate
	var open *grammar.BlockPair // non-nil while inside a block comment
	for i, line := range lines {
		spans, next := commentSpans(line, g, open)
		open = next
		for _, sp := range spans {
			out = append(out, scanSpan(file, i+1, line, sp, opts)...)
		}
	}
	return out
}

// span is a comment region within one line, [start,end) byte offsets.
type span struct {
	start int
	end   int
}

// commentSpans computes the comment regions of one line given the block
// state carried in from the previous line. Block tracking is depth-1: a
// nested open inside an open block is ignored, matching the grammars here.
// When a block open and a line prefix both appear, the leftmost one wins.
func commentSpans(line string, g *grammar.Grammar, open *grammar.BlockPair) ([]span, *grammar.BlockPair) {
	var spans []span
	pos := 0

	for pos <= len(line) {
		if open != nil {
			idx := strings.Index(line[pos:], open.Close)
			if idx < 0 {
				spans = append(spans, span{start: pos, end: len(line)})
				return spans, open
			}
			spans = append(spans, span{start: pos, end: pos + idx})
			pos += idx + len(open.Close)
			open = nil
			continue
		}

		kind, at, pair := nextCommentStart(line, pos, g)
		if kind == startNone {
			return spans, nil
		}
		if kind == startLine {
			spans = append(spans, span{start: at, end: len(line)})
			return spans, nil
		}
		// Block open: content starts after the delimiter.
		pos = at + len(pair.Open)
		open = pair
	}
	return spans, open
}

type startKind int

const (
	startNone startKind = iota
	startLine
	startBlock
)

// nextCommentStart locates the leftmost comment opener at or after pos.
func nextCommentStart(line string, pos int, g *grammar.Grammar) (startKind, int, *grammar.BlockPair) {
	kind := startNone
	best := -1
	var bestPair *grammar.BlockPair

	for _, prefix := range g.LinePrefixes {
		if idx := strings.Index(line[pos:], prefix); idx >= 0 {
			at := pos + idx
			if best < 0 || at < best {
				kind, best, bestPair = startLine, at, nil
			}
		}
	}
	for bi := range g.BlockPairs {
		pair := &g.BlockPairs[bi]
		if idx := strings.Index(line[pos:], pair.Open); idx >= 0 {
			at := pos + idx
			// Leftmost wins; on a tie the longer delimiter wins so Lua's
			// --[[ beats its -- prefix at the same offset.
			if best < 0 || at < best || (at == best && kind == startLine && len(pair.Open) > 2) {
				kind, best, bestPair = startBlock, at, pair
			}
		}
	}
	return kind, best, bestPair
}

// scanSpan extracts candidates from one comment span of one line.
func scanSpan(file string, lineNo int, line string, sp span, opts Options) []Candidate {
	text := line[sp.start:sp.end]
	var out []Candidate

	signals := findSignalWords(text, opts.SignalWords)
	keys := findKeys(text, opts.TicketPatterns)

	claimed := make([]bool, len(keys))
	for si, sig := range signals {
		// A signal word claims the first key between it and the next signal.
		limit := len(text)
		if si+1 < len(signals) {
			limit = signals[si+1].at
		}
		cand := Candidate{
			File:       file,
			Line:       lineNo,
			Column:     sp.start + sig.at,
			Text:       line,
			SignalWord: sig.word,
		}
		for ki, key := range keys {
			if claimed[ki] || key.at < sig.at || key.at >= limit {
				continue
			}
			claimed[ki] = true
			cand.Key = key.text
			cand.Attributes = parseAttributes(text[key.at+len(key.text):])
			break
		}
		out = append(out, cand)
	}

	if opts.EnableMentions {
		for ki, key := range keys {
			if claimed[ki] {
				continue
			}
			out = append(out, Candidate{
				File:       file,
				Line:       lineNo,
				Column:     sp.start + key.at,
				Text:       line,
				Key:        key.text,
				Mention:    true,
				Attributes: parseAttributes(text[key.at+len(key.text):]),
			})
		}
	}
	return out
}

// Title derives the task seed title from the comment text following the
// marker: the text after the signal word, minus key decoration, a leading
// colon, and any trailing attribute block.
func (c *Candidate) Title() string {
	if c.SignalWord == "" {
		return ""
	}
	rest := c.Text[c.Column+len(c.SignalWord):]
	if c.Key != "" {
		if idx := strings.Index(rest, c.Key); idx >= 0 {
			rest = rest[idx+len(c.Key):]
		}
	}
	rest = strings.TrimLeft(rest, ") \t")
	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end >= 0 {
			rest = rest[end+1:]
		}
	}
	rest = strings.TrimLeft(rest, " \t")
	rest = strings.TrimPrefix(rest, ":")
	return strings.TrimSpace(rest)
}

type match struct {
	at   int
	word string
	text string
}

// findSignalWords locates configured words at word boundaries,
// case-sensitively, in text order.
func findSignalWords(text string, words []string) []match {
	var out []match
	for _, word := range words {
		from := 0
		for {
			idx := strings.Index(text[from:], word)
			if idx < 0 {
				break
			}
			at := from + idx
			if atWordBoundary(text, at, len(word)) {
				out = append(out, match{at: at, word: word})
			}
			from = at + len(word)
		}
	}
	sortMatches(out)
	return out
}

// findKeys locates ticket keys via the configured patterns, in text order,
// collapsing overlapping matches from different patterns (first pattern wins).
func findKeys(text string, patterns []*regexp.Regexp) []match {
	var out []match
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if overlapsAny(out, loc[0], loc[1]) {
				continue
			}
			out = append(out, match{at: loc[0], text: text[loc[0]:loc[1]]})
		}
	}
	sortMatches(out)
	return out
}

func overlapsAny(ms []match, start, end int) bool {
	for _, m := range ms {
		if start < m.at+len(m.text) && m.at < end {
			return true
		}
	}
	return false
}

func sortMatches(ms []match) {
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && ms[j].at < ms[j-1].at; j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

func atWordBoundary(text string, at, length int) bool {
	if at > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:at])
		if isWordRune(r) {
			return false
		}
	}
	if at+length < len(text) {
		r, _ := utf8.DecodeRuneInString(text[at+length:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// parseAttributes reads a trailing [key=value, key2=value2] block that
// immediately follows a ticket key (ignoring the key's closing paren and
// colon decoration). Returns nil when absent or malformed.
func parseAttributes(rest string) map[string]string {
	i := 0
	for i < len(rest) && (rest[i] == ')' || rest[i] == ':' || rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i >= len(rest) || rest[i] != '[' {
		return nil
	}
	end := strings.IndexByte(rest[i:], ']')
	if end < 0 {
		return nil
	}
	body := rest[i+1 : i+end]

	attrs := make(map[string]string)
	for _, part := range strings.Split(body, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			return nil
		}
		attrs[k] = v
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
