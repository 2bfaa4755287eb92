package ws

import (
	"encoding/json"
	"time"

	"github.com/numero41/SNTNZ-sub000/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgJoin          MessageType = "join"
	MsgWordSubmitted MessageType = "wordSubmitted"
	MsgCastVote      MessageType = "castVote"
	MsgPing          MessageType = "ping"
)

// Server → Client message types. Engine events (initialState, nextTick,
// liveFeedUpdated, currentTextUpdated, submissionFailed) are forwarded
// as-is; these cover the protocol level.
const (
	MsgError MessageType = "error"
	MsgPong  MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a protocol-level message from server to
// client, shaped like a domain event on the wire.
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Client message payloads

// JoinPayload is the payload for the join message
type JoinPayload struct {
	Name string `json:"name"`
}

// WordSubmittedPayload is the payload for the wordSubmitted message
type WordSubmittedPayload struct {
	Word   string          `json:"word"`
	Styles domain.StyleSet `json:"styles"`
}

// CastVotePayload is the payload for the castVote message
type CastVotePayload struct {
	CompositeKey string `json:"compositeKey"`
	Direction    string `json:"direction"` // "up" or "down"
}

// ErrorPayload is the payload for error messages
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeInvalidVote    = "INVALID_VOTE"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
