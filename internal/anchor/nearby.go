package anchor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// lineHasKey reports whether line contains key as a whole token. A bare
// substring check is not enough: PROJ-1 occurs inside PROJ-10, and
// re-localizing onto another task's key would corrupt the anchor.
func lineHasKey(line, key string) bool {
	for start := 0; ; {
		i := strings.Index(line[start:], key)
		if i < 0 {
			return false
		}
		i += start
		before, _ := utf8.DecodeLastRuneInString(line[:i])
		after, _ := utf8.DecodeRuneInString(line[i+len(key):])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		start = i + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// FindNearby searches for key in lines, expanding outward from expected
// (1-based) by a growing radius up to maxRadius. The expected line is
// checked first, then expected-1/expected+1, and so on, so the closest
// occurrence wins. Returns the 1-based line found, or false when the key
// does not occur within the window. Pure: no file or git access, so drift
// recovery works the same inside and outside a repository.
func FindNearby(lines []string, expected int, key string, maxRadius int) (int, bool) {
	contains := func(n int) bool {
		return n >= 1 && n <= len(lines) && lineHasKey(lines[n-1], key)
	}
	if contains(expected) {
		return expected, true
	}
	for r := 1; r <= maxRadius; r++ {
		if contains(expected - r) {
			return expected - r, true
		}
		if contains(expected + r) {
			return expected + r, true
		}
	}
	return 0, false
}
