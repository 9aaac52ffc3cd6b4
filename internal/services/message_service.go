// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the lifecycle of chat messages. It validates inputs, derives the
// receiver and message type server-side (neither is ever trusted from the
// client), persists the message, keeps the conversation preview current, and
// runs the inquiry/response tracker after every successful send.
//
// Observability: the send path is OpenTelemetry-instrumented; spans include
// conversation/sender identifiers and the derived message type.
package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
	"github.com/templatehub/chat-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Preview placeholders for non-text messages, shown in the inbox instead of
// raw attachment URLs.
const (
	previewImage = "📷 Image"
	previewVoice = "🎤 Voice Note"
	previewFile  = "📎 File"

	// previewMaxRunes caps the stored LastMessage preview.
	previewMaxRunes = 120

	// defaultResponseWindow is how long a seller has to answer an inquiry
	// before it counts as unresponded forever.
	defaultResponseWindow = 24 * time.Hour
)

// SendInput carries a send request after transport decoding. SenderID is the
// authenticated session identity, never a client-supplied field.
type SendInput struct {
	ConversationID string
	SenderID       string
	Content        string
	FileURL        string
	FileType       string
	OriginalName   string
}

// MessageService coordinates message persistence, read receipts, and the
// inquiry/response bookkeeping layered on top of the message log.
type MessageService struct {
	DB *gorm.DB

	// MaxContentRunes caps message text length; 0 disables the check.
	MaxContentRunes int

	// ResponseWindow bounds how late a reply may arrive and still count as a
	// response to an inquiry. Zero means the 24h default.
	ResponseWindow time.Duration
}

// Send validates, persists, and response-tracks one message. The receiver is
// always the other conversation participant; the message type is derived
// from the attachment MIME type. The conversation preview and the response
// tracker are updated in the same transaction as the message row.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("conversation.id", in.ConversationID),
			attribute.String("sender.id", in.SenderID),
		),
	)
	defer span.End()

	content := strings.TrimSpace(in.Content)
	if content == "" && in.FileURL == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}

	conv, err := repo.GetConversation(ctx, s.DB, in.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	receiverID := conv.Other(in.SenderID)
	if receiverID == "" {
		return nil, ErrNotParticipant
	}

	messageType := detectMessageType(in.FileURL, in.FileType)
	span.SetAttributes(attribute.String("message.type", messageType))

	// A pure attachment message stores the file URL as its content.
	if content == "" {
		content = in.FileURL
	}

	var att *repo.Attachment
	if in.FileURL != "" {
		att = &repo.Attachment{
			FileURL:      in.FileURL,
			FileType:     in.FileType,
			OriginalName: in.OriginalName,
		}
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, cerr := repo.CreateMessage(ctx, tx, conv.ID, in.SenderID, receiverID, content, messageType, att)
		if cerr != nil {
			return cerr
		}
		msg = m

		if terr := repo.TouchConversation(ctx, tx, conv.ID, previewFor(content, messageType), m.CreatedAt); terr != nil {
			return terr
		}

		return s.trackResponse(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// trackResponse checks whether msg answers an outstanding inquiry addressed
// to its sender and, if the reply landed inside the response window, records
// the elapsed hours on the inquiry. Replies at or past the window boundary
// leave the inquiry unresponded forever; the flags only ever go false→true.
func (s *MessageService) trackResponse(ctx context.Context, tx *gorm.DB, msg *domain.Message) error {
	inquiry, err := repo.FindOpenInquiry(ctx, tx, msg.ConversationID, msg.ReceiverID, msg.SenderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	elapsed := msg.CreatedAt.Sub(inquiry.CreatedAt)
	if !withinResponseWindow(elapsed, s.responseWindow()) {
		return nil
	}

	return repo.MarkInquiryResponded(ctx, tx, inquiry.ID, RoundHours(elapsed))
}

// Edit rewrites a text message's content. Only the stored sender may edit,
// and only text messages that have not been deleted are editable.
func (s *MessageService) Edit(ctx context.Context, requesterID, messageID, newContent string) (*domain.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(newContent) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}

	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if m.SenderID != requesterID {
		return nil, ErrNotSender
	}
	if m.MessageType != domain.MessageTypeText || m.Deleted {
		return nil, ErrNotEditable
	}

	return repo.EditMessage(ctx, s.DB, messageID, newContent)
}

// Delete soft-deletes a message: the row survives with cleared content so
// history renders a placeholder. Only the stored sender may delete. Deleting
// an already deleted message is a no-op returning the same state.
func (s *MessageService) Delete(ctx context.Context, requesterID, messageID string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if m.SenderID != requesterID {
		return nil, ErrNotSender
	}
	if m.Deleted {
		return m, nil
	}
	return repo.SoftDeleteMessage(ctx, s.DB, messageID)
}

// MarkRead bulk-marks every message the reader received in the conversation
// as read. Redundant calls are safe. Returns the number of rows updated.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrConversationNotFound
		}
		return 0, err
	}
	if !conv.Has(readerID) {
		return 0, ErrNotParticipant
	}
	return repo.MarkMessagesRead(ctx, s.DB, conv.ID, readerID, time.Now().UTC())
}

// History returns the conversation's full message log, oldest first, for a
// participant. This is the REST snapshot a reconnecting client fetches
// before re-joining the room.
func (s *MessageService) History(ctx context.Context, userID, conversationID string) ([]domain.Message, error) {
	if err := s.requireParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return repo.ListMessages(ctx, s.DB, conversationID)
}

// HistoryPage returns one page of the message log plus the total count.
// Defaults are applied for invalid page/pageSize.
func (s *MessageService) HistoryPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "HistoryPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if err := s.requireParticipant(ctx, userID, conversationID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, offset, pageSize)
	return items, total, err
}

// requireParticipant verifies the conversation exists and userID belongs to it.
func (s *MessageService) requireParticipant(ctx context.Context, userID, conversationID string) error {
	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	if !conv.Has(userID) {
		return ErrNotParticipant
	}
	return nil
}

// withinResponseWindow reports whether a reply still answers an inquiry.
// The window is half-open: a reply at exactly the boundary is already late.
func withinResponseWindow(elapsed, window time.Duration) bool {
	return elapsed >= 0 && elapsed < window
}

// responseWindow returns the configured window or the 24h default.
func (s *MessageService) responseWindow() time.Duration {
	if s.ResponseWindow > 0 {
		return s.ResponseWindow
	}
	return defaultResponseWindow
}

// detectMessageType derives the stored type from attachment metadata. No
// attachment means text; otherwise the MIME prefix decides.
func detectMessageType(fileURL, fileType string) string {
	if fileURL == "" {
		return domain.MessageTypeText
	}
	switch {
	case strings.HasPrefix(fileType, "image/"):
		return domain.MessageTypeImage
	case strings.HasPrefix(fileType, "audio/"):
		return domain.MessageTypeVoice
	default:
		return domain.MessageTypeFile
	}
}

// previewFor builds the denormalized inbox preview for a message: clipped
// text for text messages, a placeholder for attachments.
func previewFor(content, messageType string) string {
	switch messageType {
	case domain.MessageTypeImage:
		return previewImage
	case domain.MessageTypeVoice:
		return previewVoice
	case domain.MessageTypeFile:
		return previewFile
	}
	if utf8.RuneCountInString(content) > previewMaxRunes {
		return string([]rune(content)[:previewMaxRunes])
	}
	return content
}

// RoundHours converts a duration to fractional hours rounded to one decimal,
// the unit the response tracker records.
func RoundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*10) / 10
}
