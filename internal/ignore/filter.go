package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type rule struct {
	pattern  string
	re       *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
}

// Filter applies gitignore-style rules with "last rule wins" behavior.
// Rules from .gitignore are layered first, then .lotarignore, so project
// scan rules can re-include paths that git ignores (and vice versa).
type Filter struct {
	rules []rule
}

// defaultRules are always prepended; user negation rules can override them.
var defaultRules = []string{
	".git/",
	".lotar/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
}

// NewFilter builds a filter from raw pattern lines, defaults first.
func NewFilter(lines []string) *Filter {
	all := make([]string, 0, len(defaultRules)+len(lines))
	all = append(all, defaultRules...)
	all = append(all, lines...)

	rules := make([]rule, 0, len(all))
	for _, line := range all {
		if parsed, ok := parseRule(line); ok {
			rules = append(rules, parsed)
		}
	}
	return &Filter{rules: rules}
}

// LoadFilter reads .gitignore then .lotarignore under root and combines
// them into one filter. A missing file contributes no rules.
func LoadFilter(root string) (*Filter, error) {
	var lines []string
	for _, name := range []string{".gitignore", ".lotarignore"} {
		fileLines, err := readRuleFile(filepath.Join(root, name))
		if err != nil {
			return nil, err
		}
		lines = append(lines, fileLines...)
	}
	return NewFilter(lines), nil
}

func readRuleFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// IsIgnored returns true when relPath should be excluded from scanning.
// Directories reported as ignored must be pruned entirely by the caller.
func (f *Filter) IsIgnored(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	ignored := false
	for i := range f.rules {
		if f.rules[i].matches(relPath, isDir) {
			ignored = !f.rules[i].negated
		}
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	parsed := rule{}
	if strings.HasPrefix(line, "!") {
		parsed.negated = true
		line = strings.TrimPrefix(line, "!")
	}
	if strings.HasPrefix(line, "/") {
		parsed.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if strings.HasSuffix(line, "/") {
		parsed.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	parsed.pattern = line
	parsed.re = compileGlob(line)
	return parsed, true
}

func (r *rule) matches(relPath string, isDir bool) bool {
	if r.dirOnly {
		if r.matchesDirectory(relPath) {
			return true
		}
		return isDir && r.re.MatchString(filepath.Base(relPath))
	}

	if r.anchored {
		return r.re.MatchString(relPath)
	}

	if strings.Contains(r.pattern, "/") {
		if r.re.MatchString(relPath) {
			return true
		}
		// Unanchored path patterns may match any trailing sub-path.
		parts := strings.Split(relPath, "/")
		for i := 1; i < len(parts); i++ {
			if r.re.MatchString(strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	if r.re.MatchString(filepath.Base(relPath)) {
		return true
	}
	for _, segment := range strings.Split(relPath, "/") {
		if r.re.MatchString(segment) {
			return true
		}
	}
	return false
}

func (r *rule) matchesDirectory(relPath string) bool {
	if relPath == r.pattern || strings.HasPrefix(relPath, r.pattern+"/") {
		return true
	}
	if r.anchored {
		return false
	}
	parts := strings.Split(relPath, "/")
	for i := range parts {
		if strings.Join(parts[:i+1], "/") == r.pattern {
			return true
		}
	}
	return false
}

// compileGlob translates one gitignore glob into an anchored regexp. Rules
// are compiled once at filter construction, not per path tested.
func compileGlob(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]

		if ch == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString("[^/]*")
			continue
		}
		if ch == '?' {
			b.WriteString("[^/]")
			continue
		}
		if strings.ContainsRune(`.+()|[]{}^$\`, rune(ch)) {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	b.WriteByte('$')
	return regexp.MustCompile(b.String())
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}
