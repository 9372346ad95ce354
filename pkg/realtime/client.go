// Package realtime implements the bidirectional channel to the Argus
// portal over a websocket connection bound to the current session.
//
// The channel gives per-socket FIFO delivery and nothing more: no
// queuing, no reconnect policy, no delivery guarantee. Request/response
// exchanges are matched by correlation id so a stale answer can never be
// applied to a newer check.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/telescopiosnaescola/argus/internal/session"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send and Request before Connect.
var ErrNotConnected = errors.New("realtime: not connected")

// Handler receives the payload of a broadcast message.
type Handler func(payload json.RawMessage)

// Client manages one websocket connection to the portal.
type Client struct {
	endpoint string
	sessions *session.Store
	logger   *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	handlers map[string][]registeredHandler
	pending  map[string]chan Message
	nextReg  int
}

type registeredHandler struct {
	id int
	fn Handler
}

// NewClient creates a realtime client for the portal at baseURL. The
// websocket endpoint is derived from the HTTP base URL (http -> ws,
// https -> wss) at path /ws. The session store cookies authenticate the
// connection.
func NewClient(baseURL string, sessions *session.Store, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	return &Client{
		endpoint: u.String(),
		sessions: sessions,
		logger:   logger.With(zap.String("component", "realtime_client")),
		handlers: make(map[string][]registeredHandler),
		pending:  make(map[string]chan Message),
	}, nil
}

// Connect dials the portal websocket endpoint. Calling Connect on an
// already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	header := http.Header{}
	if cookies := c.sessions.CookieHeader(); cookies != "" {
		header.Set("Cookie", cookies)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return fmt.Errorf("dial %s failed (status %d): %w", c.endpoint, status, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		// Lost the race against a concurrent Connect; keep the first.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("Connected to realtime channel", zap.String("endpoint", c.endpoint))
	go c.readLoop(conn)
	return nil
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Disconnect closes the connection. Pending requests fail with a closed
// channel error.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.logger.Info("Disconnecting from realtime channel")
		_ = conn.Close()
	}
}

// Send emits a fire-and-forget message.
func (c *Client) Send(msgType string, payload interface{}) error {
	return c.write(Message{Type: msgType}, payload)
}

// Request sends a message carrying a fresh correlation id and waits for
// the response bearing the same id. Responses for other ids are never
// misapplied; the wait ends on context cancellation or disconnect.
func (c *Client) Request(ctx context.Context, msgType string, payload interface{}) (Message, error) {
	id := uuid.NewString()
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return Message{}, ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Message{Type: msgType, ID: id}, payload); err != nil {
		return Message{}, err
	}

	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg, ok := <-ch:
		if !ok {
			return Message{}, ErrNotConnected
		}
		return msg, nil
	}
}

// On registers a handler for a broadcast message type and returns a
// registration id for Off.
func (c *Client) On(msgType string, fn Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextReg++
	c.handlers[msgType] = append(c.handlers[msgType], registeredHandler{id: c.nextReg, fn: fn})
	return c.nextReg
}

// Off removes a handler previously registered with On.
func (c *Client) Off(msgType string, registration int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hs := c.handlers[msgType]
	for i, h := range hs {
		if h.id == registration {
			c.handlers[msgType] = append(hs[:i], hs[i+1:]...)
			return
		}
	}
}

func (c *Client) write(msg Message, payload interface{}) error {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		msg.Payload = data
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	// gorilla/websocket allows one concurrent writer.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s failed: %w", msg.Type, err)
	}

	c.logger.Debug("Message sent", zap.String("type", msg.Type), zap.String("id", msg.ID))
	return nil
}

// readLoop dispatches incoming messages until the connection drops.
// Correlated responses go to their waiter; everything else fans out to
// the broadcast handlers for its type.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.teardown(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Read loop ended", zap.Error(err))
			}
			return
		}

		c.logger.Debug("Message received", zap.String("type", msg.Type), zap.String("id", msg.ID))

		if msg.ID != "" {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- msg
				continue
			}
			// Stale response: its waiter gave up. Fall through to the
			// broadcast handlers so observers still see it.
		}

		c.mu.Lock()
		hs := make([]registeredHandler, len(c.handlers[msg.Type]))
		copy(hs, c.handlers[msg.Type])
		c.mu.Unlock()

		for _, h := range hs {
			h.fn(msg.Payload)
		}
	}
}

func (c *Client) teardown(conn *websocket.Conn) {
	_ = conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	pending := c.pending
	c.pending = make(map[string]chan Message)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}
