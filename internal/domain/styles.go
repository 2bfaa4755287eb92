package domain

import "strings"

// StyleSet holds the four style flags a word can carry. Unknown flags
// arriving on the wire are dropped at the submission boundary because
// this struct is closed.
type StyleSet struct {
	Bold      bool `json:"bold"`
	Italic    bool `json:"italic"`
	Underline bool `json:"underline"`
	Newline   bool `json:"newline"`
}

// Signature returns a stable four-bit signature for the style set,
// e.g. "1010" for bold+underline. Used inside composite keys.
func (s StyleSet) Signature() string {
	bits := [4]byte{'0', '0', '0', '0'}
	if s.Bold {
		bits[0] = '1'
	}
	if s.Italic {
		bits[1] = '1'
	}
	if s.Underline {
		bits[2] = '1'
	}
	if s.Newline {
		bits[3] = '1'
	}
	return string(bits[:])
}

// CompositeKey merges a case-normalized word with a style signature so
// identical proposals from different submitters share one entry.
func CompositeKey(word string, styles StyleSet) string {
	return strings.ToLower(word) + "|" + styles.Signature()
}
