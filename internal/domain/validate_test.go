package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	v := NewValidator([]string{"banned"})

	tests := []struct {
		name string
		word string
		want error
	}{
		{"plain word", "lighthouse", nil},
		{"with punctuation", "lighthouse.", nil},
		{"empty", "", ErrEmptyWord},
		{"whitespace only", "   ", ErrEmptyWord},
		{"too long", strings.Repeat("a", MaxWordLength+1), ErrWordTooLong},
		{"two tokens", "two words", ErrNotSingleToken},
		{"embedded newline", "two\nwords", ErrNotSingleToken},
		{"built-in profanity", "fuck", ErrProfanity},
		{"profanity with punctuation", "Fuck!", ErrProfanity},
		{"configured extra", "Banned", ErrProfanity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.word)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestIsProfane(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.IsProfane("shit"))
	assert.True(t, v.IsProfane("Shit."))
	assert.False(t, v.IsProfane("ship"))
}
