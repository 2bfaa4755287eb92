package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numero41/SNTNZ-sub000/internal/app"
	"github.com/numero41/SNTNZ-sub000/internal/bot"
	"github.com/numero41/SNTNZ-sub000/internal/config"
	"github.com/numero41/SNTNZ-sub000/internal/domain"
	"github.com/numero41/SNTNZ-sub000/internal/storage/memory"
)

// setupClient wires a client to a live engine. The connection stays nil:
// message handling and the outbound queue never touch it, so the decode
// paths are testable without a socket.
func setupClient(t *testing.T, clientID, name string) (*Client, *app.Engine) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	contributor := bot.New(bot.Config{}, nil, logger)
	engine := app.NewEngine(cfg, memory.NewStore(), domain.NewValidator(nil), contributor, app.SystemClock(), logger)
	t.Cleanup(engine.Close)

	return NewClient(nil, engine, clientID, name, logger), engine
}

// errorMessage is the wire shape of protocol-level error replies.
type errorMessage struct {
	Type    MessageType  `json:"type"`
	Payload ErrorPayload `json:"payload"`
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	case <-time.After(time.Second):
		t.Fatal("no message queued for the client")
		return nil
	}
}

func assertNothingQueued(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message queued: %s", data)
	default:
	}
}

func TestNewClientDefaultsName(t *testing.T) {
	c, _ := setupClient(t, "c1", "")
	assert.Equal(t, "anon", c.Name())
}

func TestJoinNormalizesName(t *testing.T) {
	tests := []struct {
		name string
		sent string
		want string
	}{
		{"trimmed", "  Alice  ", "Alice"},
		{"empty defaults", "", "anon"},
		{"whitespace defaults", "   ", "anon"},
		{"bounded", strings.Repeat("x", 40), strings.Repeat("x", 24)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setupClient(t, "c1", "initial")
			payload, _ := json.Marshal(JoinPayload{Name: tt.sent})
			msg, _ := json.Marshal(ClientMessage{Type: MsgJoin, Payload: payload})

			c.handleMessage(msg)
			assert.Equal(t, tt.want, c.Name())
		})
	}
}

func TestMalformedMessageSendsError(t *testing.T) {
	c, _ := setupClient(t, "c1", "Alice")

	c.handleMessage([]byte("{not json"))

	var reply errorMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &reply))
	assert.Equal(t, MsgError, reply.Type)
	assert.Equal(t, ErrCodeInvalidMessage, reply.Payload.Code)
}

func TestUnknownTypeSendsError(t *testing.T) {
	c, _ := setupClient(t, "c1", "Alice")

	c.handleMessage([]byte(`{"type":"teleport"}`))

	var reply errorMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &reply))
	assert.Equal(t, ErrCodeInvalidMessage, reply.Payload.Code)
}

func TestWordSubmittedReachesEngine(t *testing.T) {
	c, engine := setupClient(t, "c1", "Alice")

	payload, _ := json.Marshal(WordSubmittedPayload{
		Word:   "hello",
		Styles: domain.StyleSet{Bold: true},
	})
	msg, _ := json.Marshal(ClientMessage{Type: MsgWordSubmitted, Payload: payload})
	c.handleMessage(msg)

	views := engine.SnapshotFor("c1")
	require.Len(t, views, 1)
	assert.Equal(t, "hello", views[0].Word)
	assert.True(t, views[0].Styles.Bold)
	assert.Equal(t, "Alice", views[0].SubmitterName)
	assert.Equal(t, "up", views[0].MyVote)
}

func TestCastVoteInvalidDirectionSendsError(t *testing.T) {
	c, engine := setupClient(t, "c1", "Alice")
	require.NoError(t, engine.Submit("c2", "Bob", "word", domain.StyleSet{}))

	payload, _ := json.Marshal(CastVotePayload{
		CompositeKey: domain.CompositeKey("word", domain.StyleSet{}),
		Direction:    "sideways",
	})
	msg, _ := json.Marshal(ClientMessage{Type: MsgCastVote, Payload: payload})
	c.handleMessage(msg)

	var reply errorMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &reply))
	assert.Equal(t, ErrCodeInvalidVote, reply.Payload.Code)
}

func TestCastVoteStaleKeyIsSilent(t *testing.T) {
	c, _ := setupClient(t, "c1", "Alice")

	payload, _ := json.Marshal(CastVotePayload{
		CompositeKey: "gone|0000",
		Direction:    "up",
	})
	msg, _ := json.Marshal(ClientMessage{Type: MsgCastVote, Payload: payload})
	c.handleMessage(msg)

	assertNothingQueued(t, c)
}

func TestCastVoteOwnSubmissionIsSilent(t *testing.T) {
	c, engine := setupClient(t, "c1", "Alice")
	require.NoError(t, engine.Submit("c1", "Alice", "word", domain.StyleSet{}))

	payload, _ := json.Marshal(CastVotePayload{
		CompositeKey: domain.CompositeKey("word", domain.StyleSet{}),
		Direction:    "down",
	})
	msg, _ := json.Marshal(ClientMessage{Type: MsgCastVote, Payload: payload})
	c.handleMessage(msg)

	assertNothingQueued(t, c)
}

func TestPingAnswersPong(t *testing.T) {
	c, _ := setupClient(t, "c1", "Alice")

	c.handleMessage([]byte(`{"type":"ping"}`))

	var reply ServerMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &reply))
	assert.Equal(t, MsgPong, reply.Type)
}
