package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/numero41/SNTNZ-sub000/internal/app"
	"github.com/numero41/SNTNZ-sub000/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256

	// Display names are trimmed to this length
	maxNameLength = 24
)

// Client represents a WebSocket client connection
type Client struct {
	conn     *websocket.Conn
	engine   *app.Engine
	clientID string
	send     chan []byte
	done     chan struct{}
	logger   *slog.Logger

	mu     sync.Mutex
	name   string
	closed bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, engine *app.Engine, clientID, name string, logger *slog.Logger) *Client {
	if name == "" {
		name = "anon"
	}
	return &Client{
		conn:     conn,
		engine:   engine,
		clientID: clientID,
		name:     name,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// ClientID implements app.ClientConnection
func (c *Client) ClientID() string {
	return c.clientID
}

// Name returns the client's current display name.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Send implements app.ClientConnection
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "clientID", c.clientID)
		return nil
	}
}

// Close implements app.ClientConnection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.engine.UnregisterClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgJoin:
		c.handleJoin(msg.Payload)
	case MsgWordSubmitted:
		c.handleWordSubmitted(msg.Payload)
	case MsgCastVote:
		c.handleCastVote(msg.Payload)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleJoin handles a join message
func (c *Client) handleJoin(payload json.RawMessage) {
	var join JoinPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	name := strings.TrimSpace(join.Name)
	if name == "" {
		name = "anon"
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}

	c.mu.Lock()
	c.name = name
	c.mu.Unlock()

	c.logger.Debug("client joined", "clientID", c.clientID, "name", name)
}

// handleWordSubmitted handles a wordSubmitted message
func (c *Client) handleWordSubmitted(payload json.RawMessage) {
	var submit WordSubmittedPayload
	if err := json.Unmarshal(payload, &submit); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	// Validation failures already reach this client through the
	// engine's submissionFailed event.
	if err := c.engine.Submit(c.clientID, c.Name(), submit.Word, submit.Styles); err != nil {
		c.logger.Debug("submission rejected", "clientID", c.clientID, "error", err)
	}
}

// handleCastVote handles a castVote message
func (c *Client) handleCastVote(payload json.RawMessage) {
	var vote CastVotePayload
	if err := json.Unmarshal(payload, &vote); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	err := c.engine.CastVote(c.clientID, vote.CompositeKey, vote.Direction)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidDirection):
		c.sendError(ErrCodeInvalidVote, "Vote direction must be up or down")
	case errors.Is(err, domain.ErrSubmissionNotFound), errors.Is(err, domain.ErrCannotVoteOwn):
		// Stale or self-directed votes are silent no-ops.
	default:
		c.sendError(ErrCodeInternalError, err.Error())
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.Send(NewServerMessage(MsgError, &ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	c.Send(NewServerMessage(MsgPong, nil))
}
