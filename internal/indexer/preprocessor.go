package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes statute text for chunking: unifies line endings, turns
// full-width and other Unicode spaces into plain spaces, collapses runs of spaces
// within a line, and drops blank lines. Line breaks are kept because article markers
// and paragraph boundaries depend on them.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var b strings.Builder
		wasSpace := false
		for _, r := range line {
			if unicode.IsSpace(r) || r == '\u3000' || r == '\ufeff' {
				if !wasSpace {
					b.WriteRune(' ')
					wasSpace = true
				}
				continue
			}
			b.WriteRune(r)
			wasSpace = false
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
