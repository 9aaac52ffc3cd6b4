// Package gateway – hub.
//
// The Hub is the connection registry: it tracks live clients, their room
// memberships (one room per conversation), and who is currently typing
// where. Register/unregister flow through channels serviced by Run; room
// fan-out reads the membership maps under a read lock.
package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Hub routes events between websocket clients grouped into conversation
// rooms. Create with NewHub and drive with Run.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// rooms maps conversation ID → member set.
	rooms map[string]map[*Client]struct{}
	// typing maps conversation ID → set of user IDs currently typing.
	typing map[string]map[string]struct{}

	register   chan *Client
	unregister chan *Client

	log zerolog.Logger

	// onFrame handles decoded inbound frames; set once before Run.
	onFrame func(c *Client, f Frame)
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		typing:     make(map[string]map[string]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With().Str("component", "gateway").Logger(),
	}
}

// SetFrameHandler installs the inbound frame handler. Must be called before
// the first connection is accepted.
func (h *Hub) SetFrameHandler(fn func(c *Client, f Frame)) {
	h.onFrame = fn
}

// Run services register/unregister traffic until ctx is canceled. On
// shutdown every remaining client's send channel is closed, which makes its
// write pump close the underlying connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.removeLocked(c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Info().
				Str("client_id", c.id).
				Str("user_id", c.userID).
				Msg("client connected")
		case c := <-h.unregister:
			var stale []string
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				stale = h.removeLocked(c)
			}
			h.mu.Unlock()
			// A vanished client stops typing everywhere it was typing.
			for _, room := range stale {
				h.EmitToRoom(room, EventStopTyping, TypingPayload{
					ConversationID: room,
					UserID:         c.userID,
				})
			}
			h.log.Info().
				Str("client_id", c.id).
				Str("user_id", c.userID).
				Msg("client disconnected")
		}
	}
}

// removeLocked drops a client from every map and closes its send channel.
// Returns the rooms in which the client's user was marked typing. Caller
// holds h.mu.
func (h *Hub) removeLocked(c *Client) []string {
	var typingRooms []string
	delete(h.clients, c)
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		if set, ok := h.typing[room]; ok {
			if _, was := set[c.userID]; was {
				typingRooms = append(typingRooms, room)
				delete(set, c.userID)
				if len(set) == 0 {
					delete(h.typing, room)
				}
			}
		}
	}
	c.closeSend()
	return typingRooms
}

// Join subscribes the client to a conversation room. Joining twice is a
// no-op.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// SetTyping records the typing state for the client's user in a room and
// returns whether the state changed (callers only fan out on transitions).
func (h *Hub) SetTyping(c *Client, room string, typing bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.typing[room]
	if typing {
		if set == nil {
			set = make(map[string]struct{})
			h.typing[room] = set
		}
		if _, ok := set[c.userID]; ok {
			return false
		}
		set[c.userID] = struct{}{}
		return true
	}
	if set == nil {
		return false
	}
	if _, ok := set[c.userID]; !ok {
		return false
	}
	delete(set, c.userID)
	if len(set) == 0 {
		delete(h.typing, room)
	}
	return true
}

// EmitToRoom sends an event frame to every member of the room. Clients with
// a full send buffer miss the frame rather than stall the hub; a reconnect
// plus REST snapshot recovers their state.
func (h *Hub) EmitToRoom(room, event string, data any) {
	h.emit(room, nil, event, data)
}

// EmitToRoomExcept is EmitToRoom minus one client, used so senders do not
// receive their own typing indicators.
func (h *Hub) EmitToRoomExcept(room string, except *Client, event string, data any) {
	h.emit(room, except, event, data)
}

func (h *Hub) emit(room string, except *Client, event string, data any) {
	payload, err := encodeFrame(event, data)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c == except {
			continue
		}
		if !c.queue(payload) {
			h.log.Warn().
				Str("client_id", c.id).
				Str("event", event).
				Msg("dropping frame")
		}
	}
}

// RoomSize reports the member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// InRoom reports whether the client is currently a member of the room.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}
