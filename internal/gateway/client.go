// Package gateway – client connection plumbing.
//
// Each websocket connection gets a Client with a buffered send channel and
// two goroutines: readPump decodes inbound frames and hands them to the
// hub's frame handler, writePump serializes all writes (gorilla/websocket
// permits at most one concurrent writer) and keeps the connection alive
// with pings.
package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// writeWait is the deadline for a single write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// maxFrameBytes caps a single inbound frame.
	maxFrameBytes = 64 * 1024

	// sendBuffer is the per-client outbound queue length.
	sendBuffer = 256
)

// Client is one authenticated websocket connection.
type Client struct {
	id     string
	userID string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  zerolog.Logger

	// sendMu guards closed and the send channel: the hub may close the
	// channel (unregister, shutdown) while a dispatcher goroutine is still
	// answering a command for this client.
	sendMu sync.Mutex
	closed bool

	// rooms the client joined; owned by the hub, guarded by hub.mu.
	rooms map[string]struct{}
}

// UserID returns the authenticated user behind the connection.
func (c *Client) UserID() string { return c.userID }

// queue enqueues an encoded frame. Reports false when the client is shut
// down or its buffer is full; either way the frame is dropped, never
// blocked on.
func (c *Client) queue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend marks the client shut down and closes the send channel exactly
// once, which makes writePump close the connection.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// sendEvent queues an event frame for this client only. Frames are dropped
// when the buffer is full, same policy as room fan-out.
func (c *Client) sendEvent(event string, data any) {
	payload, err := encodeFrame(event, data)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	c.queue(payload)
}

// sendError queues an error frame describing a failed command.
func (c *Client) sendError(code, event, message string) {
	c.sendEvent(EventError, ErrorEvent{Code: code, Event: event, Message: message})
}

// readPump reads frames until the connection dies, forwarding each decoded
// frame to the hub's handler. Runs as its own goroutine per connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.sendError(ErrCodeValidation, "", "malformed frame")
			continue
		}
		if c.hub.onFrame != nil {
			c.hub.onFrame(c, f)
		}
	}
}

// writePump drains the send channel onto the wire and pings on a ticker.
// Exits when the hub closes the send channel or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
