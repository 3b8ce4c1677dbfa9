// Package utils provides shared utilities for text, math, and logging.
package utils

import "unicode/utf8"

// RuneLen returns the number of characters in s. Chunk limits are measured in
// characters, so a Chinese article of 500 characters has length 500.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen]) + "..."
}
