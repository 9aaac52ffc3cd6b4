// Package services defines the business logic for conversations, messages,
// and response-rate tracking. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages, HTTP status codes, or socket error
// events is performed at the transport layer (HTTP handlers / gateway).
package services

import "errors"

var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyContent is returned when a message carries neither text nor an
	// attachment. Empty-bubble spam is rejected, not silently dropped.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrContentTooLong is returned when message content exceeds the
	// configured maximum length.
	ErrContentTooLong = errors.New("message content too long")

	// ErrNotParticipant is returned when the acting user is not one of the
	// conversation's two participants.
	ErrNotParticipant = errors.New("user is not a conversation participant")

	// ErrNotSender is returned when a user tries to edit or delete a message
	// they did not send.
	ErrNotSender = errors.New("only the sender may modify a message")

	// ErrNotEditable is returned when editing a non-text or deleted message.
	ErrNotEditable = errors.New("message cannot be edited")

	// ErrSelfConversation is returned when a user tries to start a
	// conversation with themselves.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")

	// ErrEmptyRecipient is returned when the recipient id is blank.
	ErrEmptyRecipient = errors.New("recipient id is required")
)
