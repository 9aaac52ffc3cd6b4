package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
)

// seedConversation creates a conversation row for message tests.
func seedConversation(t *testing.T, db *gorm.DB, a, b string) *domain.Conversation {
	t.Helper()
	c, err := FindOrCreateConversation(context.Background(), db, a, b)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return c
}

func TestCreateMessage_TextAndAttachment(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "buyer", "seller")

	msg, err := CreateMessage(ctx, db, conv.ID, "buyer", "seller", "hi there", domain.MessageTypeText, nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.ID == "" || msg.SenderID != "buyer" || msg.ReceiverID != "seller" || msg.Content != "hi there" {
		t.Fatalf("unexpected message fields: %+v", msg)
	}
	if msg.IsRead || msg.Edited || msg.Deleted || msg.IsInquiry || msg.HasResponse {
		t.Fatalf("flags must start false: %+v", msg)
	}

	withFile, err := CreateMessage(ctx, db, conv.ID, "buyer", "seller", "/uploads/x.png", domain.MessageTypeImage, &Attachment{
		FileURL:      "/uploads/x.png",
		FileType:     "image/png",
		OriginalName: "photo.png",
	})
	if err != nil {
		t.Fatalf("CreateMessage with attachment: %v", err)
	}
	if withFile.FileURL != "/uploads/x.png" || withFile.FileType != "image/png" || withFile.OriginalName != "photo.png" {
		t.Fatalf("attachment fields not persisted: %+v", withFile)
	}
	if !withFile.HasAttachment() {
		t.Fatalf("HasAttachment should report true")
	}
}

func TestListMessages_AscendingOrder(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "u1", "u2")

	// Seed with explicit timestamps so ordering is deterministic.
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		m := &domain.Message{
			ID:             text, // readable IDs for assertions
			ConversationID: conv.ID,
			SenderID:       "u1",
			ReceiverID:     "u2",
			Content:        text,
			MessageType:    domain.MessageTypeText,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	got, err := ListMessages(ctx, db, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != 3 || got[0].Content != "first" || got[2].Content != "third" {
		t.Fatalf("unexpected order/content: %+v", got)
	}

	page, err := ListMessagesPage(ctx, db, conv.ID, 1, 1)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if len(page) != 1 || page[0].Content != "second" {
		t.Fatalf("expected page with 'second', got %+v", page)
	}

	total, err := CountMessages(ctx, db, conv.ID)
	if err != nil || total != 3 {
		t.Fatalf("CountMessages = %d, %v", total, err)
	}
}

func TestEditMessage_SetsContentAndFlag(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "u1", "u2")

	m, _ := CreateMessage(ctx, db, conv.ID, "u1", "u2", "typo", domain.MessageTypeText, nil)
	got, err := EditMessage(ctx, db, m.ID, "fixed")
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if got.Content != "fixed" || !got.Edited {
		t.Fatalf("edit not applied: %+v", got)
	}

	if _, err := EditMessage(ctx, db, "missing", "x"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for missing message, got %v", err)
	}
}

func TestSoftDeleteMessage_IdempotentAndClearsContent(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "u1", "u2")

	m, _ := CreateMessage(ctx, db, conv.ID, "u1", "u2", "secret", domain.MessageTypeText, nil)

	first, err := SoftDeleteMessage(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("SoftDeleteMessage: %v", err)
	}
	if !first.Deleted || first.Content != "" {
		t.Fatalf("expected deleted row with cleared content: %+v", first)
	}

	// Second delete is a no-op returning the same state, not an error.
	second, err := SoftDeleteMessage(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("second SoftDeleteMessage: %v", err)
	}
	if !second.Deleted || second.Content != "" {
		t.Fatalf("idempotence broken: %+v", second)
	}

	// The row survives for history placeholders.
	all, _ := ListMessages(ctx, db, conv.ID)
	if len(all) != 1 {
		t.Fatalf("soft delete must keep the row, got %d rows", len(all))
	}
}

func TestMarkMessagesRead_ScopedToReceivedUnread(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "u1", "u2")

	// Two messages to u2, one from u2.
	_, _ = CreateMessage(ctx, db, conv.ID, "u1", "u2", "a", domain.MessageTypeText, nil)
	_, _ = CreateMessage(ctx, db, conv.ID, "u1", "u2", "b", domain.MessageTypeText, nil)
	own, _ := CreateMessage(ctx, db, conv.ID, "u2", "u1", "mine", domain.MessageTypeText, nil)

	at := time.Now().UTC()
	n, err := MarkMessagesRead(ctx, db, conv.ID, "u2", at)
	if err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows marked, got %d", n)
	}

	// The reader's own message stays unread.
	got, _ := GetMessage(ctx, db, own.ID)
	if got.IsRead {
		t.Fatalf("reader's own message must not be marked read")
	}

	// Redundant call matches nothing.
	n2, err := MarkMessagesRead(ctx, db, conv.ID, "u2", at)
	if err != nil || n2 != 0 {
		t.Fatalf("expected 0 rows on redundant call, got %d, %v", n2, err)
	}
}

func TestPurgeConversationMessages_RemovesOnlyThatConversation(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "u1", "u2")
	other := seedConversation(t, db, "u3", "u4")

	_, _ = CreateMessage(ctx, db, conv.ID, "u1", "u2", "bye", domain.MessageTypeText, nil)
	_, _ = CreateMessage(ctx, db, conv.ID, "u2", "u1", "bye bye", domain.MessageTypeText, nil)
	keep, _ := CreateMessage(ctx, db, other.ID, "u3", "u4", "stay", domain.MessageTypeText, nil)

	n, err := PurgeConversationMessages(ctx, db, conv.ID)
	if err != nil || n != 2 {
		t.Fatalf("PurgeConversationMessages = %d, %v", n, err)
	}
	if _, err := GetMessage(ctx, db, keep.ID); err != nil {
		t.Fatalf("other conversation's message must survive: %v", err)
	}
	if _, err := LatestMessage(ctx, db, conv.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected empty history after purge, got %v", err)
	}
}

func TestLatestMessage_NewestWins(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "u1", "u2")

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, text := range []string{"old", "new"} {
		m := &domain.Message{
			ID:             text,
			ConversationID: conv.ID,
			SenderID:       "u1",
			ReceiverID:     "u2",
			Content:        text,
			MessageType:    domain.MessageTypeText,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := LatestMessage(ctx, db, conv.ID)
	if err != nil {
		t.Fatalf("LatestMessage: %v", err)
	}
	if got.Content != "new" {
		t.Fatalf("expected newest message, got %q", got.Content)
	}
}
