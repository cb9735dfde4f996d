package utils

import "strings"

// ContainsString returns true iff the provided string slice hay contains string
// needle.
func ContainsString(hay []string, needle string) bool {
	for _, str := range hay {
		if str == needle {
			return true
		}
	}
	return false
}

// TruncateString cuts s to at most n runes.
func TruncateString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// IsBlank reports whether s has only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
