package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       string
		limit   int
		want    string
		wantCut bool
	}{
		{"negative limit leaves input alone", "abc", -1, "abc", false},
		{"under limit", "abc", 10, "abc", false},
		{"exactly at limit", "abc", 3, "abc", false},
		{"cut ascii", "abcdef", 4, "abcd", true},
		{"zero limit cuts everything", "abc", 0, "", true},
		{"empty input", "", 5, "", false},
		{"multi-byte runes stay whole", "héllo", 2, "hé", true},
		{"cjk counted as runes not bytes", "日本語テキスト", 3, "日本語", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, cut := truncateRunes(tt.s, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCut, cut)
		})
	}
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    string
		want []string
	}{
		{"empty", "", nil},
		{"single line no newline", "a", []string{"a"}},
		{"two lines no trailing newline", "a\nb", []string{"a", "b"}},
		{"trailing newline adds no line", "a\nb\n", []string{"a", "b"}},
		{"lone newline is one empty line", "\n", []string{""}},
		{"interior blank line preserved", "a\n\nb\n", []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitLines(tt.s))
		})
	}
}
