// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The participant pair is stored in canonical order (see NormalizePair), so
// FindOrCreateConversation(A, B) and FindOrCreateConversation(B, A) always
// resolve to the same row. Duplicate creation under concurrent callers is
// absorbed by the unique index on (user_a, user_b): the loser of the race
// re-fetches the winner's row.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// NormalizePair returns the unordered participant pair in canonical storage
// order (lexicographically ascending).
func NormalizePair(x, y string) (a, b string) {
	if x <= y {
		return x, y
	}
	return y, x
}

// FindOrCreateConversation returns the conversation between the unordered
// pair (userX, userY), creating it with an empty preview when absent.
// Repeated and concurrent calls for the same pair resolve to the same row.
func FindOrCreateConversation(ctx context.Context, db *gorm.DB, userX, userY string) (*domain.Conversation, error) {
	a, b := NormalizePair(userX, userY)

	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("user_a = ? AND user_b = ?", a, b).
		First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c = domain.Conversation{
		ID:        uuid.NewString(),
		UserA:     a,
		UserB:     b,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&c).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost the creation race; the winner's row is the conversation.
			var existing domain.Conversation
			if ferr := db.WithContext(ctx).
				Where("user_a = ? AND user_b = ?", a, b).
				First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a conversation by its ID. If the record does not
// exist, it returns ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversationsForUser returns every conversation userID participates
// in, ordered by last activity descending (most recent first). It returns an
// empty slice when the user has no conversations.
func ListConversationsForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// TouchConversation updates the denormalized preview and the last-activity
// timestamp; called after every successful message write. Returns ErrNotFound
// when no row matched.
func TouchConversation(ctx context.Context, db *gorm.DB, id, preview string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_message": preview, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-index violation. GORM
// does not translate driver errors for the pure-Go SQLite driver, so the
// error string is inspected as a fallback.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
