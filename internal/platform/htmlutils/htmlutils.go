// Package htmlutils provides helpers for Telegram HTML messages.
//
// Telegram measures message length in UTF-16 code units after entity parsing,
// so limits are applied to the plain text before it is escaped.
package htmlutils

import (
	"unicode/utf16"
)

// MaxMessageUnits is the Bot API limit for a message text.
const MaxMessageUnits = 4096

const ellipsis = "…"

// UTF16Len returns the number of UTF-16 code units needed to encode s.
// Characters outside the BMP (emoji, etc.) take a surrogate pair.
func UTF16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// utf16Slice returns the longest prefix of s that fits in maxUnits code units.
func utf16Slice(s string, maxUnits int) string {
	units := 0

	for i, r := range s {
		runeUnits := 1
		if r > 0xFFFF {
			runeUnits = 2 // Surrogate pair needed
		}

		if units+runeUnits > maxUnits {
			return s[:i]
		}

		units += runeUnits
	}

	return s
}

// Truncate shortens s to at most maxUnits code units, marking the cut with
// an ellipsis.
func Truncate(s string, maxUnits int) string {
	if maxUnits <= 0 {
		return ""
	}

	if UTF16Len(s) <= maxUnits {
		return s
	}

	return utf16Slice(s, maxUnits-UTF16Len(ellipsis)) + ellipsis
}
