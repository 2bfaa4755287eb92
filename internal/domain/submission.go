package domain

import "time"

// Vote directions. The zero vote is represented by absence from the
// vote map, never by a stored 0.
const (
	VoteUp   = 1
	VoteDown = -1
)

// Submission is one live proposal for the current round. Two submitters
// proposing the identical (word, styles) pair share a single Submission
// and a single vote pool.
type Submission struct {
	CompositeKey  string         `json:"compositeKey"`
	Word          string         `json:"word"`
	Styles        StyleSet       `json:"styles"`
	SubmitterID   string         `json:"-"`
	SubmitterName string         `json:"submitterName"`
	CreatedAt     time.Time      `json:"createdAt"`
	Votes         map[string]int `json:"-"`
}

// NewSubmission creates a submission seeded with the submitter's own
// up-vote.
func NewSubmission(submitterID, submitterName, word string, styles StyleSet, now time.Time) *Submission {
	return &Submission{
		CompositeKey:  CompositeKey(word, styles),
		Word:          word,
		Styles:        styles,
		SubmitterID:   submitterID,
		SubmitterName: submitterName,
		CreatedAt:     now,
		Votes:         map[string]int{submitterID: VoteUp},
	}
}

// Score is the sum of all votes on this submission.
func (s *Submission) Score() int {
	total := 0
	for _, v := range s.Votes {
		total += v
	}
	return total
}

// SubmissionView is a submission as seen by one requester, annotated
// with that requester's own vote state for the UI.
type SubmissionView struct {
	CompositeKey  string   `json:"compositeKey"`
	Word          string   `json:"word"`
	Styles        StyleSet `json:"styles"`
	SubmitterName string   `json:"submitterName"`
	Score         int      `json:"score"`
	TotalVotes    int      `json:"totalVotes"`
	MyVote        string   `json:"myVote,omitempty"` // "up", "down" or empty
}
