package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
)

func TestFirstMessageFrom_OldestOnly(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "buyer", "seller")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := func(id, sender string, offset time.Duration) {
		m := &domain.Message{
			ID:             id,
			ConversationID: conv.ID,
			SenderID:       sender,
			ReceiverID:     conv.Other(sender),
			Content:        id,
			MessageType:    domain.MessageTypeText,
			CreatedAt:      base.Add(offset),
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("late", "buyer", time.Hour)
	seed("early", "buyer", 0)
	seed("reply", "seller", 30*time.Minute)

	got, err := FirstMessageFrom(ctx, db, conv.ID, "buyer")
	if err != nil {
		t.Fatalf("FirstMessageFrom: %v", err)
	}
	if got.ID != "early" {
		t.Fatalf("expected the buyer's oldest message, got %q", got.ID)
	}

	if _, err := FirstMessageFrom(ctx, db, conv.ID, "stranger"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for user with no messages, got %v", err)
	}
}

func TestMarkMessageAsInquiry_SetsFlag(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "buyer", "seller")
	m, _ := CreateMessage(ctx, db, conv.ID, "buyer", "seller", "is this available?", domain.MessageTypeText, nil)

	if err := MarkMessageAsInquiry(ctx, db, m.ID); err != nil {
		t.Fatalf("MarkMessageAsInquiry: %v", err)
	}
	got, _ := GetMessage(ctx, db, m.ID)
	if !got.IsInquiry {
		t.Fatalf("inquiry flag not set: %+v", got)
	}

	// Re-flagging is a no-op, not an error.
	if err := MarkMessageAsInquiry(ctx, db, m.ID); err != nil {
		t.Fatalf("re-flagging should be a no-op: %v", err)
	}

	if err := MarkMessageAsInquiry(ctx, db, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestFindOpenInquiry_NewestUnresponded(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "buyer", "seller")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := func(id string, offset time.Duration, responded bool) {
		m := &domain.Message{
			ID:             id,
			ConversationID: conv.ID,
			SenderID:       "buyer",
			ReceiverID:     "seller",
			Content:        id,
			MessageType:    domain.MessageTypeText,
			IsInquiry:      true,
			HasResponse:    responded,
			CreatedAt:      base.Add(offset),
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("answered", 0, true)
	seed("open-old", time.Hour, false)
	seed("open-new", 2*time.Hour, false)

	got, err := FindOpenInquiry(ctx, db, conv.ID, "buyer", "seller")
	if err != nil {
		t.Fatalf("FindOpenInquiry: %v", err)
	}
	if got.ID != "open-new" {
		t.Fatalf("expected newest open inquiry, got %q", got.ID)
	}

	// Direction matters: nothing outstanding from seller to buyer.
	if _, err := FindOpenInquiry(ctx, db, conv.ID, "seller", "buyer"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for reverse direction, got %v", err)
	}
}

func TestMarkInquiryResponded_WriteOnce(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "buyer", "seller")
	m, _ := CreateMessage(ctx, db, conv.ID, "buyer", "seller", "q", domain.MessageTypeText, nil)
	if err := MarkMessageAsInquiry(ctx, db, m.ID); err != nil {
		t.Fatalf("flag: %v", err)
	}

	if err := MarkInquiryResponded(ctx, db, m.ID, 2.5); err != nil {
		t.Fatalf("MarkInquiryResponded: %v", err)
	}
	got, _ := GetMessage(ctx, db, m.ID)
	if !got.HasResponse || got.ResponseTime == nil || *got.ResponseTime != 2.5 {
		t.Fatalf("response not recorded: %+v", got)
	}

	// Second attempt must not overwrite the recorded time.
	if err := MarkInquiryResponded(ctx, db, m.ID, 9.9); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected write-once guard to reject, got %v", err)
	}
	got2, _ := GetMessage(ctx, db, m.ID)
	if *got2.ResponseTime != 2.5 {
		t.Fatalf("response time overwritten: %v", *got2.ResponseTime)
	}
}

func TestListInquiries_ReceivedAndRecent(t *testing.T) {
	db := newChatDB(t)
	ctx := context.Background()
	conv := seedConversation(t, db, "buyer", "seller")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"q1", "q2", "q3"} {
		m := &domain.Message{
			ID:             id,
			ConversationID: conv.ID,
			SenderID:       "buyer",
			ReceiverID:     "seller",
			Content:        id,
			MessageType:    domain.MessageTypeText,
			IsInquiry:      true,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	// A plain message must not show up in inquiry listings.
	_, _ = CreateMessage(ctx, db, conv.ID, "buyer", "seller", "not an inquiry", domain.MessageTypeText, nil)

	all, err := ListInquiriesReceived(ctx, db, "seller")
	if err != nil {
		t.Fatalf("ListInquiriesReceived: %v", err)
	}
	if len(all) != 3 || all[0].ID != "q1" {
		t.Fatalf("expected 3 inquiries oldest-first, got %+v", all)
	}

	recent, err := ListRecentInquiries(ctx, db, "seller", 2)
	if err != nil {
		t.Fatalf("ListRecentInquiries: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "q3" || recent[1].ID != "q2" {
		t.Fatalf("expected 2 newest inquiries, got %+v", recent)
	}
}
