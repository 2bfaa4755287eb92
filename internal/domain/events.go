package domain

import "time"

// EventType represents the type of engine event
type EventType string

const (
	EventInitialState       EventType = "initialState"
	EventNextTick           EventType = "nextTick"
	EventLiveFeedUpdated    EventType = "liveFeedUpdated"
	EventCurrentTextUpdated EventType = "currentTextUpdated"
	EventSubmissionFailed   EventType = "submissionFailed"
)

// Event is one outbound notification. ClientID is set only on events
// addressed to a single client; broadcast events leave it empty.
type Event struct {
	Type      EventType   `json:"type"`
	ClientID  string      `json:"-"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a broadcast event.
func NewEvent(eventType EventType, payload interface{}) *Event {
	return &Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewClientEvent creates an event addressed to a single client.
func NewClientEvent(eventType EventType, clientID string, payload interface{}) *Event {
	e := NewEvent(eventType, payload)
	e.ClientID = clientID
	return e
}

// Payload types for outbound events

// InitialStatePayload is sent to a client right after it joins.
type InitialStatePayload struct {
	LedgerWindow    []*WordRecord    `json:"ledgerWindow"`
	LiveSubmissions []SubmissionView `json:"liveSubmissions"`
	NextBoundary    time.Time        `json:"nextBoundary"`
	Round           uint64           `json:"round"`
}

// NextTickPayload is broadcast when a new round is scheduled.
type NextTickPayload struct {
	NextBoundary time.Time `json:"nextBoundary"`
	Round        uint64    `json:"round"`
}

// LiveFeedPayload carries the live submission feed. The feed is
// personalized per client with its own vote state, so the payload is
// built at send time rather than attached here.
type LiveFeedPayload struct {
	Submissions []SubmissionView `json:"submissions"`
}

// CurrentTextPayload is broadcast when a word is accepted into the
// ledger window.
type CurrentTextPayload struct {
	LedgerWindow []*WordRecord `json:"ledgerWindow"`
}

// SubmissionFailedPayload is sent only to the client whose input was
// rejected.
type SubmissionFailedPayload struct {
	Reason string `json:"reason"`
}
