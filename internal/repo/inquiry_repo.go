// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the inquiry/response bookkeeping
// queries layered over the Message model. An "inquiry" is a first-contact
// message flagged for response-rate tracking; the response flags are
// write-once (false→true only).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
)

// FirstMessageFrom returns the oldest message senderID sent into the
// conversation, or ErrNotFound when they have not written yet.
func FirstMessageFrom(ctx context.Context, db *gorm.DB, conversationID, senderID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id = ?", conversationID, senderID).
		Order("created_at ASC, id ASC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkMessageAsInquiry flags a message for response tracking. Flagging an
// already flagged message is a no-op.
func MarkMessageAsInquiry(ctx context.Context, db *gorm.DB, messageID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Update("is_inquiry", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindOpenInquiry returns the newest unresponded inquiry in the conversation
// sent by fromUser to toUser, or ErrNotFound.
func FindOpenInquiry(ctx context.Context, db *gorm.DB, conversationID, fromUser, toUser string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id = ? AND receiver_id = ? AND is_inquiry = ? AND has_response = ?",
			conversationID, fromUser, toUser, true, false).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkInquiryResponded records that the inquiry got its reply, with the
// elapsed time in fractional hours. The WHERE clause on has_response makes
// the transition write-once: a second call matches zero rows and reports
// ErrNotFound rather than overwriting the recorded time.
func MarkInquiryResponded(ctx context.Context, db *gorm.DB, inquiryID string, responseTime float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND is_inquiry = ? AND has_response = ?", inquiryID, true, false).
		Updates(map[string]any{"has_response": true, "response_time": responseTime})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListInquiriesReceived returns every inquiry addressed to userID, oldest
// first. This is the full scan behind the response-rate aggregate; cost is
// proportional to the user's inquiry volume.
func ListInquiriesReceived(ctx context.Context, db *gorm.DB, userID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("receiver_id = ? AND is_inquiry = ?", userID, true).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListRecentInquiries returns the newest inquiries addressed to userID,
// capped at limit. Used by the detailed stats view.
func ListRecentInquiries(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("receiver_id = ? AND is_inquiry = ?", userID, true).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
