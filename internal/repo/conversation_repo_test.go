package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/templatehub/chat-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("chat_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newChatDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newRepoDB(t, &domain.Conversation{}, &domain.Message{})
}

func TestNormalizePair_CanonicalOrder(t *testing.T) {
	a, b := NormalizePair("zoe", "adam")
	if a != "adam" || b != "zoe" {
		t.Fatalf("expected canonical order (adam, zoe), got (%s, %s)", a, b)
	}
	a2, b2 := NormalizePair("adam", "zoe")
	if a2 != a || b2 != b {
		t.Fatalf("order must not depend on argument order: (%s, %s)", a2, b2)
	}
}

func TestFindOrCreateConversation_IdempotentAndSymmetric(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()

	c1, err := FindOrCreateConversation(ctx, db, "buyer", "seller")
	if err != nil {
		t.Fatalf("FindOrCreateConversation: %v", err)
	}
	if c1.ID == "" || c1.UserA != "buyer" || c1.UserB != "seller" {
		t.Fatalf("unexpected conversation fields: %+v", c1)
	}

	// Same pair, either direction, resolves to the same row.
	c2, err := FindOrCreateConversation(ctx, db, "seller", "buyer")
	if err != nil {
		t.Fatalf("FindOrCreateConversation reversed: %v", err)
	}
	if c2.ID != c1.ID {
		t.Fatalf("expected same conversation, got %s and %s", c1.ID, c2.ID)
	}

	var count int64
	if err := db.Model(&domain.Conversation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 conversation, got %d", count)
	}
}

func TestFindOrCreateConversation_DistinctPairs(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()

	c1, _ := FindOrCreateConversation(ctx, db, "u1", "u2")
	c2, err := FindOrCreateConversation(ctx, db, "u1", "u3")
	if err != nil {
		t.Fatalf("FindOrCreateConversation: %v", err)
	}
	if c1.ID == c2.ID {
		t.Fatalf("different pairs must map to different conversations")
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	db := newChatDB(t)
	if _, err := GetConversation(context.Background(), db, "nope"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestListConversationsForUser_NewestActivityFirst(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()

	older, _ := FindOrCreateConversation(ctx, db, "me", "a")
	newer, _ := FindOrCreateConversation(ctx, db, "me", "b")
	_, _ = FindOrCreateConversation(ctx, db, "x", "y") // someone else's

	// Bump activity so "older" becomes the most recent.
	if err := TouchConversation(ctx, db, older.ID, "hello", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("TouchConversation: %v", err)
	}

	got, err := ListConversationsForUser(ctx, db, "me")
	if err != nil {
		t.Fatalf("ListConversationsForUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(got))
	}
	if got[0].ID != older.ID || got[1].ID != newer.ID {
		t.Fatalf("expected touched conversation first, got order %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].LastMessage != "hello" {
		t.Fatalf("expected preview 'hello', got %q", got[0].LastMessage)
	}
}

func TestTouchConversation_MissingRow(t *testing.T) {
	db := newChatDB(t)
	err := TouchConversation(context.Background(), db, "missing", "p", time.Now())
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestIsUniqueViolation_DetectsDuplicatePair(t *testing.T) {
	db := newChatDB(t)

	if err := db.Create(&domain.Conversation{ID: "c-1", UserA: "a", UserB: "b"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&domain.Conversation{ID: "c-2", UserA: "a", UserB: "b"}).Error
	if err == nil {
		t.Fatalf("expected unique pair index to reject the duplicate")
	}
	// This is the signal FindOrCreateConversation relies on to re-fetch the
	// row a concurrent creator won with.
	if !isUniqueViolation(err) {
		t.Fatalf("expected isUniqueViolation=true for %v", err)
	}
	if isUniqueViolation(gorm.ErrRecordNotFound) {
		t.Fatalf("unrelated errors must not be treated as unique violations")
	}
}
