package domain

import "strings"

// MaxWordLength bounds a single submission. Long enough for any real
// word plus attached punctuation.
const MaxWordLength = 32

// baseProfanity is the built-in block list. Operators extend it via
// configuration.
var baseProfanity = []string{
	"fuck", "shit", "cunt", "bitch", "asshole", "bastard",
	"dick", "wank", "slut", "whore", "nigger", "faggot",
}

// Validator checks inbound words for shape and profanity. The zero
// value is not usable; construct with NewValidator.
type Validator struct {
	blocked map[string]struct{}
}

// NewValidator builds a validator from the built-in block list plus any
// operator-configured extra terms.
func NewValidator(extra []string) *Validator {
	blocked := make(map[string]struct{}, len(baseProfanity)+len(extra))
	for _, w := range baseProfanity {
		blocked[w] = struct{}{}
	}
	for _, w := range extra {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			blocked[w] = struct{}{}
		}
	}
	return &Validator{blocked: blocked}
}

// Validate checks a single submitted word. It returns nil when the word
// is acceptable, or a domain error describing the rejection.
func (v *Validator) Validate(word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return ErrEmptyWord
	}
	if len(word) > MaxWordLength {
		return ErrWordTooLong
	}
	if strings.ContainsAny(word, " \t\n\r") {
		return ErrNotSingleToken
	}
	if v.IsProfane(word) {
		return ErrProfanity
	}
	return nil
}

// IsProfane reports whether the word, stripped of surrounding
// punctuation and case, appears on the block list.
func (v *Validator) IsProfane(word string) bool {
	normalized := strings.ToLower(strings.Trim(word, ".,!?;:'\"()"))
	_, ok := v.blocked[normalized]
	return ok
}
