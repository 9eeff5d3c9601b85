package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reFootnote      = regexp.MustCompile(`\[\d+\]`)
	reCitation      = regexp.MustCompile(`(?i)\[citation needed\]`)
	rePresumed      = regexp.MustCompile(`(?i)\[presumed[^\]]*\]`)
	reWhitespaceRun = regexp.MustCompile(`\s+`)
)

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// CleanDisplayText strips footnote markers and editorial brackets from wiki
// text and collapses whitespace.
func CleanDisplayText(value string) string {
	value = reFootnote.ReplaceAllString(value, "")
	value = reCitation.ReplaceAllString(value, "")
	value = rePresumed.ReplaceAllString(value, "")
	value = reWhitespaceRun.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// Truncate cuts value to at most n runes.
func Truncate(value string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= n {
		return value
	}
	runes := []rune(value)
	return string(runes[:n])
}
