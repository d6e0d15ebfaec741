package segmenter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// A trailing hyphen or dash means the speaker is mid-word or mid-clause.
	danglingJoiners = "-‐‑‒–—"
	openers         = "([{“‘«"
	closers         = ".,!?;:)]}"
	// Straight quotes open only at the start of text or after whitespace;
	// elsewhere they close a quote or form an apostrophe.
	straightQuotes = "\"'"
)

// Normalize trims s and collapses every internal whitespace run to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// JoinText appends next to prev, inserting a single space unless prev ends in
// a dash, an opening bracket or quote, or whitespace, or next starts with
// closing punctuation. A straight quote counts as opening only when nothing
// but whitespace precedes it.
func JoinText(prev, next string) string {
	if prev == "" {
		return next
	}
	if next == "" {
		return prev
	}
	if needsSpace(prev, next) {
		return prev + " " + next
	}
	return prev + next
}

func needsSpace(prev, next string) bool {
	last, _ := utf8.DecodeLastRuneInString(prev)
	if unicode.IsSpace(last) {
		return false
	}
	if strings.ContainsRune(danglingJoiners, last) || strings.ContainsRune(openers, last) {
		return false
	}
	if strings.ContainsRune(straightQuotes, last) && opensQuote(prev) {
		return false
	}

	first, _ := utf8.DecodeRuneInString(next)
	return !strings.ContainsRune(closers, first)
}

// opensQuote reports whether the straight quote ending prev starts a quotation.
func opensQuote(prev string) bool {
	_, size := utf8.DecodeLastRuneInString(prev)
	before := prev[:len(prev)-size]
	if before == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(before)
	return unicode.IsSpace(r)
}
