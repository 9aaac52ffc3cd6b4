// Package gateway implements the realtime chat transport: a websocket hub
// with per-conversation rooms, typing indicators, and live message events.
//
// Wire format: every frame is a JSON object {"event": "...", "data": {...}}.
// Clients send command frames (join_conversation, typing, send_message, …);
// the gateway answers with event frames (receive_message, messages_read, …)
// fanned out to the relevant room. Invalid or failed commands produce an
// "error" frame addressed to the offending client only — commands are never
// silently dropped.
//
// The sender identity is always the authenticated connection identity;
// client payloads cannot speak for another user.
package gateway

import "encoding/json"

// Client → server commands.
const (
	EventJoin          = "join_conversation"
	EventTyping        = "typing"
	EventStopTyping    = "stop_typing"
	EventSendMessage   = "send_message"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventReadMessages  = "read_messages"
)

// Server → client events.
const (
	EventReceiveMessage = "receive_message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMessagesRead   = "messages_read"
	EventError          = "error"
)

// Error codes carried in error frames.
const (
	ErrCodeValidation = "validation_error"
	ErrCodeNotFound   = "not_found"
	ErrCodeForbidden  = "forbidden"
	ErrCodeStorage    = "storage_error"
)

// Frame is the envelope every websocket message travels in. Data stays raw
// on the inbound path so each command can decode its own payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload subscribes the connection to a conversation room.
type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

// TypingPayload carries typing / stop_typing indicators.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

// SendPayload carries a send_message command. Attachment fields are set by
// the client after a successful upload.
type SendPayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	FileURL        string `json:"file_url,omitempty"`
	FileType       string `json:"file_type,omitempty"`
	OriginalName   string `json:"original_name,omitempty"`
}

// EditPayload carries an edit_message command.
type EditPayload struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// DeletePayload carries a delete_message command.
type DeletePayload struct {
	MessageID string `json:"message_id"`
}

// ReadPayload carries a read_messages command.
type ReadPayload struct {
	ConversationID string `json:"conversation_id"`
}

// MessageDeletedEvent is the fan-out payload for message_deleted.
type MessageDeletedEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// MessagesReadEvent is the fan-out payload for messages_read.
type MessagesReadEvent struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	Count          int64  `json:"count"`
}

// ErrorEvent is the payload of an error frame.
type ErrorEvent struct {
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
