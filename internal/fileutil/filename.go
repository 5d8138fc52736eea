// Package fileutil names exported lecture files and writes their sidecar
// metadata.
package fileutil

import (
	"regexp"
	"strings"
	"time"
)

// maxNameRunes bounds the title part of a generated name.
const maxNameRunes = 50

var (
	illegalChars = regexp.MustCompile(`[\/\\:*?"<>|]`)
	whitespace   = regexp.MustCompile(`[\s_]+`)
)

// SanitizeForFilename makes input safe for use in a filename. Illegal
// characters become underscores, runs of whitespace become one hyphen, and
// the result is cut to 50 runes. fallback is used when nothing is left.
func SanitizeForFilename(input, fallback string) string {
	sanitized := illegalChars.ReplaceAllString(input, "_")
	sanitized = whitespace.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")

	if r := []rune(sanitized); len(r) > maxNameRunes {
		sanitized = strings.TrimRight(string(r[:maxNameRunes]), "-")
	}
	if sanitized == "" {
		return fallback
	}
	return sanitized
}

// ExportBasename builds YYYY-MM-DD_HHMM_<title>, without extension.
func ExportBasename(title string, at time.Time) string {
	return at.Format("2006-01-02_1504") + "_" + SanitizeForFilename(title, "Lecture")
}
