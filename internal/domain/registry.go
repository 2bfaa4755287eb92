package domain

import (
	"sort"
	"time"
)

// SubmissionRegistry tracks all live proposals for the current round,
// keyed by composite key. It is not safe for concurrent use; the engine
// serializes access.
type SubmissionRegistry struct {
	byKey       map[string]*Submission
	bySubmitter map[string]string // submitterID -> composite key
}

// NewSubmissionRegistry creates an empty registry.
func NewSubmissionRegistry() *SubmissionRegistry {
	return &SubmissionRegistry{
		byKey:       make(map[string]*Submission),
		bySubmitter: make(map[string]string),
	}
}

// Submit registers a proposal. A submitter has at most one live
// submission per round: any prior entry loses the submitter's seed vote
// and is removed entirely once its vote pool empties. If another
// submitter already proposed the identical (word, styles) pair, the
// existing entry is reused and gains this submitter's up-vote.
func (r *SubmissionRegistry) Submit(submitterID, submitterName, word string, styles StyleSet, now time.Time) *Submission {
	r.removePrior(submitterID)

	key := CompositeKey(word, styles)
	sub, ok := r.byKey[key]
	if ok {
		sub.Votes[submitterID] = VoteUp
	} else {
		sub = NewSubmission(submitterID, submitterName, word, styles, now)
		r.byKey[key] = sub
	}
	r.bySubmitter[submitterID] = key

	return sub
}

// removePrior withdraws the submitter's previous proposal, if any.
func (r *SubmissionRegistry) removePrior(submitterID string) {
	key, ok := r.bySubmitter[submitterID]
	if !ok {
		return
	}
	delete(r.bySubmitter, submitterID)

	sub, ok := r.byKey[key]
	if !ok {
		return
	}
	delete(sub.Votes, submitterID)
	if len(sub.Votes) == 0 {
		delete(r.byKey, key)
	}
}

// CastVote applies a vote with toggle semantics: repeating a direction
// clears the vote, the opposite direction flips it. Submitters cannot
// vote on their own key through this path.
func (r *SubmissionRegistry) CastVote(voterID, compositeKey string, direction int) error {
	if direction != VoteUp && direction != VoteDown {
		return ErrInvalidDirection
	}

	sub, ok := r.byKey[compositeKey]
	if !ok {
		return ErrSubmissionNotFound
	}
	if voterID == sub.SubmitterID {
		return ErrCannotVoteOwn
	}

	if sub.Votes[voterID] == direction {
		delete(sub.Votes, voterID)
	} else {
		sub.Votes[voterID] = direction
	}

	return nil
}

// Count returns the number of live submissions.
func (r *SubmissionRegistry) Count() int {
	return len(r.byKey)
}

// HasSubmitter reports whether the given submitter has a live proposal.
func (r *SubmissionRegistry) HasSubmitter(submitterID string) bool {
	_, ok := r.bySubmitter[submitterID]
	return ok
}

// Sorted returns all submissions ordered by score descending with
// earlier submissions winning ties. The tie-break on CreatedAt decides
// round winners and must stay exact.
func (r *SubmissionRegistry) Sorted() []*Submission {
	subs := make([]*Submission, 0, len(r.byKey))
	for _, sub := range r.byKey {
		subs = append(subs, sub)
	}
	sort.SliceStable(subs, func(i, j int) bool {
		si, sj := subs[i].Score(), subs[j].Score()
		if si != sj {
			return si > sj
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs
}

// ViewFor returns the sorted feed annotated with the requester's own
// vote state on each entry.
func (r *SubmissionRegistry) ViewFor(requesterID string) []SubmissionView {
	subs := r.Sorted()
	views := make([]SubmissionView, 0, len(subs))
	for _, sub := range subs {
		view := SubmissionView{
			CompositeKey:  sub.CompositeKey,
			Word:          sub.Word,
			Styles:        sub.Styles,
			SubmitterName: sub.SubmitterName,
			Score:         sub.Score(),
			TotalVotes:    len(sub.Votes),
		}
		switch sub.Votes[requesterID] {
		case VoteUp:
			view.MyVote = "up"
		case VoteDown:
			view.MyVote = "down"
		}
		views = append(views, view)
	}
	return views
}

// Reset clears the registry for a new round and returns the final
// sorted state of the round that just ended.
func (r *SubmissionRegistry) Reset() []*Submission {
	subs := r.Sorted()
	r.byKey = make(map[string]*Submission)
	r.bySubmitter = make(map[string]string)
	return subs
}
