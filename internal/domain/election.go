package domain

import (
	"strings"
	"unicode"
)

// ElectWinner picks the round winner from a sorted submission snapshot:
// the first entry with a positive score. A nil return means the round
// ends silently with no ledger append.
func ElectWinner(sorted []*Submission) *Submission {
	for _, sub := range sorted {
		if sub.Score() > 0 {
			return sub
		}
	}
	return nil
}

// WinnerPct computes the winner's share of the round's positive votes,
// as a percentage. Negative submission scores do not dilute the total.
func WinnerPct(winner *Submission, sorted []*Submission) float64 {
	total := 0
	for _, sub := range sorted {
		if s := sub.Score(); s > 0 {
			total += s
		}
	}
	if total == 0 {
		return 0
	}
	return float64(winner.Score()) / float64(total) * 100
}

// EndsSentence reports whether a word ends in terminal punctuation.
func EndsSentence(word string) bool {
	return strings.HasSuffix(word, ".") ||
		strings.HasSuffix(word, "!") ||
		strings.HasSuffix(word, "?")
}

// CapitalizeIfNeeded upper-cases the first letter of word when the
// previous ledger word closed a sentence or the ledger is empty.
func CapitalizeIfNeeded(word, previous string) string {
	if previous != "" && !EndsSentence(previous) {
		return word
	}
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
