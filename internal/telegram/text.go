package telegram

import (
	"unicode/utf16"
	"unicode/utf8"
)

// MaxMessageLength is the Bot API limit for message text, counted in
// UTF-16 code units.
const MaxMessageLength = 4096

const truncationMark = "…"

// TruncateText shortens text to fit in one message, cutting on a rune
// boundary and marking the cut.
func TruncateText(text string) string {
	if utf16Len(text) <= MaxMessageLength {
		return text
	}

	budget := MaxMessageLength - utf16Len(truncationMark)
	used := 0
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if used+n > budget {
			return text[:i] + truncationMark
		}
		used += n
	}
	return text
}

func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
