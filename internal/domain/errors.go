package domain

import "errors"

// Domain errors
var (
	ErrEmptyWord          = errors.New("word cannot be empty")
	ErrWordTooLong        = errors.New("word is too long")
	ErrNotSingleToken     = errors.New("submission must be a single word")
	ErrProfanity          = errors.New("word is not allowed")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrCannotVoteOwn      = errors.New("cannot vote on your own submission")
	ErrInvalidDirection   = errors.New("invalid vote direction")
)
