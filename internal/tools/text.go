package tools

import (
	"strings"
	"unicode/utf8"
)

// truncateRunes cuts s to at most limit runes. The second return value
// reports whether anything was cut. Limits are counted in runes, not bytes,
// so a multi-byte character is never split.
func truncateRunes(s string, limit int) (string, bool) {
	if limit < 0 {
		return s, false
	}
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	return string([]rune(s)[:limit]), true
}

// splitLines splits s on newlines without manufacturing a trailing empty
// line: "a\nb\n" is two lines, not three, and "" is zero lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
