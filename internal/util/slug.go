package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize maps a display title to its canonical slug: lowercase, every run
// of characters outside [a-z0-9] collapsed to "-", no leading or trailing "-".
func Normalize(title string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// CleanTitle trims surrounding whitespace and applies Unicode NFC so that
// visually identical titles are stored identically.
func CleanTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}
