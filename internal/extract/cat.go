package extract

import (
	"fmt"
	"strings"

	"github.com/lu4p/cat"
)

// extractCat reads OpenDocument text and RTF through lu4p/cat.
func extractCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return normalizeLines(text), nil
}

// normalizeLines trims every line and drops blank ones.
func normalizeLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
