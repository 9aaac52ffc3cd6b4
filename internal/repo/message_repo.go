// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: append, history listing, edit, soft delete, bulk read receipts,
// and hard purge of a conversation's history.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
)

// Attachment carries optional file metadata for a message.
type Attachment struct {
	FileURL      string
	FileType     string
	OriginalName string
}

// CreateMessage inserts a new message row. Read/edited/deleted state always
// starts false; content validation is the service layer's job.
func CreateMessage(ctx context.Context, db *gorm.DB, conversationID, senderID, receiverID, content, messageType string, att *Attachment) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		MessageType:    messageType,
		CreatedAt:      time.Now().UTC(),
	}
	if att != nil {
		m.FileURL = att.FileURL
		m.FileType = att.FileType
		m.OriginalName = att.OriginalName
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns a conversation's full history ordered
// deterministically (CreatedAt ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// EditMessage rewrites a message's content and sets the edited flag,
// returning the updated row. Returns ErrNotFound when the message does not
// exist. Authorization (caller == sender) is enforced by the service layer.
func EditMessage(ctx context.Context, db *gorm.DB, id, newContent string) (*domain.Message, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"content": newContent, "edited": true})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetMessage(ctx, db, id)
}

// SoftDeleteMessage marks a message deleted and clears its content, keeping
// the row so history can render a placeholder. Deleting an already deleted
// message is a no-op that returns the same state.
func SoftDeleteMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"deleted": true, "content": ""})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetMessage(ctx, db, id)
}

// MarkMessagesRead bulk-sets the read state for every unread message in the
// conversation that was NOT sent by readerID. Safe to call redundantly; the
// second call matches zero rows. Returns the number of rows updated.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, conversationID, readerID string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// PurgeConversationMessages hard-deletes every message row for the
// conversation. This is the "delete chat history" user action, distinct from
// the soft delete of a single message.
func PurgeConversationMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}

// LatestMessage returns the newest message in a conversation, or ErrNotFound
// when the history is empty. Used to rebuild the denormalized preview.
func LatestMessage(ctx context.Context, db *gorm.DB, conversationID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
