// Package gateway – command dispatch.
//
// The Dispatcher decodes command frames, enforces authorization through the
// service layer, and fans the resulting events out to conversation rooms.
// Every failure path answers the offending client with an error frame whose
// code the frontend can branch on.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/templatehub/chat-backend/internal/services"
)

// roomEmitter is the slice of Hub the dispatcher needs. Tests substitute a
// recorder.
type roomEmitter interface {
	Join(c *Client, room string)
	SetTyping(c *Client, room string, typing bool) bool
	EmitToRoom(room, event string, data any)
	EmitToRoomExcept(room string, except *Client, event string, data any)
}

// Dispatcher routes inbound frames to service calls and room fan-out.
type Dispatcher struct {
	conversations *services.ConversationService
	messages      *services.MessageService
	rooms         roomEmitter

	// timeout bounds each command's service call.
	timeout time.Duration

	log zerolog.Logger
}

// NewDispatcher wires a dispatcher and installs it as the hub's frame
// handler.
func NewDispatcher(hub *Hub, convs *services.ConversationService, msgs *services.MessageService, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		conversations: convs,
		messages:      msgs,
		rooms:         hub,
		timeout:       timeout,
		log:           log.With().Str("component", "gateway.dispatch").Logger(),
	}
	hub.SetFrameHandler(d.HandleFrame)
	return d
}

// HandleFrame processes one inbound command frame from a client.
func (d *Dispatcher) HandleFrame(c *Client, f Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	switch f.Event {
	case EventJoin:
		d.handleJoin(ctx, c, f)
	case EventTyping:
		d.handleTyping(c, f, true)
	case EventStopTyping:
		d.handleTyping(c, f, false)
	case EventSendMessage:
		d.handleSend(ctx, c, f)
	case EventEditMessage:
		d.handleEdit(ctx, c, f)
	case EventDeleteMessage:
		d.handleDelete(ctx, c, f)
	case EventReadMessages:
		d.handleRead(ctx, c, f)
	default:
		c.sendError(ErrCodeValidation, f.Event, "unknown event")
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, c *Client, f Frame) {
	var p JoinPayload
	if !decode(c, f, &p) || !requireID(c, f.Event, p.ConversationID) {
		return
	}

	// Membership is authorization: only participants may enter the room.
	if _, err := d.conversations.Get(ctx, c.userID, p.ConversationID); err != nil {
		d.fail(c, f.Event, err)
		return
	}
	d.rooms.Join(c, p.ConversationID)
}

func (d *Dispatcher) handleTyping(c *Client, f Frame, typing bool) {
	var p TypingPayload
	if !decode(c, f, &p) || !requireID(c, f.Event, p.ConversationID) {
		return
	}

	// Only fan out on state transitions so held keys do not flood the room.
	if !d.rooms.SetTyping(c, p.ConversationID, typing) {
		return
	}
	event := EventTyping
	if !typing {
		event = EventStopTyping
	}
	d.rooms.EmitToRoomExcept(p.ConversationID, c, event, TypingPayload{
		ConversationID: p.ConversationID,
		UserID:         c.userID,
	})
}

func (d *Dispatcher) handleSend(ctx context.Context, c *Client, f Frame) {
	var p SendPayload
	if !decode(c, f, &p) || !requireID(c, f.Event, p.ConversationID) {
		return
	}

	msg, err := d.messages.Send(ctx, services.SendInput{
		ConversationID: p.ConversationID,
		SenderID:       c.userID,
		Content:        p.Content,
		FileURL:        p.FileURL,
		FileType:       p.FileType,
		OriginalName:   p.OriginalName,
	})
	if err != nil {
		d.fail(c, f.Event, err)
		return
	}

	// Typing implicitly ends on send.
	if d.rooms.SetTyping(c, p.ConversationID, false) {
		d.rooms.EmitToRoomExcept(p.ConversationID, c, EventStopTyping, TypingPayload{
			ConversationID: p.ConversationID,
			UserID:         c.userID,
		})
	}
	d.rooms.EmitToRoom(msg.ConversationID, EventReceiveMessage, msg)
}

func (d *Dispatcher) handleEdit(ctx context.Context, c *Client, f Frame) {
	var p EditPayload
	if !decode(c, f, &p) || !requireID(c, f.Event, p.MessageID) {
		return
	}

	msg, err := d.messages.Edit(ctx, c.userID, p.MessageID, p.Content)
	if err != nil {
		d.fail(c, f.Event, err)
		return
	}
	d.rooms.EmitToRoom(msg.ConversationID, EventMessageEdited, msg)
}

func (d *Dispatcher) handleDelete(ctx context.Context, c *Client, f Frame) {
	var p DeletePayload
	if !decode(c, f, &p) || !requireID(c, f.Event, p.MessageID) {
		return
	}

	msg, err := d.messages.Delete(ctx, c.userID, p.MessageID)
	if err != nil {
		d.fail(c, f.Event, err)
		return
	}
	d.rooms.EmitToRoom(msg.ConversationID, EventMessageDeleted, MessageDeletedEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
}

func (d *Dispatcher) handleRead(ctx context.Context, c *Client, f Frame) {
	var p ReadPayload
	if !decode(c, f, &p) || !requireID(c, f.Event, p.ConversationID) {
		return
	}

	n, err := d.messages.MarkRead(ctx, p.ConversationID, c.userID)
	if err != nil {
		d.fail(c, f.Event, err)
		return
	}
	d.rooms.EmitToRoom(p.ConversationID, EventMessagesRead, MessagesReadEvent{
		ConversationID: p.ConversationID,
		ReaderID:       c.userID,
		Count:          n,
	})
}

// fail maps a service error to an error frame for the offending client.
func (d *Dispatcher) fail(c *Client, event string, err error) {
	switch {
	case errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		c.sendError(ErrCodeNotFound, event, err.Error())
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrNotSender):
		c.sendError(ErrCodeForbidden, event, err.Error())
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrContentTooLong),
		errors.Is(err, services.ErrNotEditable):
		c.sendError(ErrCodeValidation, event, err.Error())
	default:
		d.log.Error().Err(err).Str("event", event).Str("user_id", c.userID).Msg("command failed")
		c.sendError(ErrCodeStorage, event, "internal error")
	}
}

// decode unmarshals the frame payload, answering a validation error frame on
// failure.
func decode(c *Client, f Frame, dst any) bool {
	if len(f.Data) == 0 {
		c.sendError(ErrCodeValidation, f.Event, "missing payload")
		return false
	}
	if err := json.Unmarshal(f.Data, dst); err != nil {
		c.sendError(ErrCodeValidation, f.Event, "malformed payload")
		return false
	}
	return true
}

// requireID rejects frames with a blank identifier field.
func requireID(c *Client, event, id string) bool {
	if id == "" {
		c.sendError(ErrCodeValidation, event, "missing id")
		return false
	}
	return true
}
