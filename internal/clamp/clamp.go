// Package clamp bounds the size of externally generated text and lists
// before they are stored, broadcast or fed to the topic stabilizer.
package clamp

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis marks a truncated value. Output may exceed the limit by its length.
const Ellipsis = "..."

const DefaultItemChars = 120

// Text returns s unchanged when it fits in maxChars runes. Otherwise it keeps
// the first maxChars runes, trims trailing whitespace and appends Ellipsis.
// A non-positive maxChars leaves nothing to keep and yields "".
func Text(s string, maxChars int) string {
	if s == "" || maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	cut, runes := len(s), 0
	for i := range s {
		if runes == maxChars {
			cut = i
			break
		}
		runes++
	}

	return strings.TrimRightFunc(s[:cut], unicode.IsSpace) + Ellipsis
}

// List trims and clamps items in order, drops those that end up empty and
// stops once maxItems values have been kept. maxItemChars <= 0 means
// DefaultItemChars.
func List(items []string, maxItems, maxItemChars int) []string {
	if maxItemChars <= 0 {
		maxItemChars = DefaultItemChars
	}

	out := make([]string, 0, min(len(items), max(maxItems, 0)))
	for _, item := range items {
		if len(out) >= maxItems {
			break
		}
		v := Text(strings.TrimSpace(item), maxItemChars)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
