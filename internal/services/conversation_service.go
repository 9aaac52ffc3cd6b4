// Package services – ConversationService
//
// This file implements the ConversationService, which manages the lifecycle
// of conversations: idempotent find-or-create between an unordered pair of
// users, inbox listing with participant profiles, bulk history purge, and
// rebuilding the denormalized preview from the message log.
//
// Service-level errors (e.g., ErrConversationNotFound) are returned for
// predictable cases so transports can map them to HTTP results or socket
// error events consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
	"github.com/templatehub/chat-backend/internal/repo"
)

// ConversationRepo defines the repository contract required by
// ConversationService. Implementations are responsible for persistence of
// conversation aggregates.
type ConversationRepo interface {
	// FindOrCreate resolves the unordered pair to its single conversation,
	// creating it with an empty preview when absent.
	FindOrCreate(ctx context.Context, db *gorm.DB, userX, userY string) (*domain.Conversation, error)

	// Get fetches a conversation by ID.
	Get(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error)

	// ListForUser returns the user's conversations, newest activity first.
	ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error)

	// Touch updates the preview and last-activity timestamp.
	Touch(ctx context.Context, db *gorm.DB, id, preview string, at time.Time) error
}

// ConversationView decorates a conversation with resolved participant
// profiles for inbox rendering.
type ConversationView struct {
	domain.Conversation
	Participants []Profile `json:"participants"`
}

// ConversationService provides conversation-level operations: starting (or
// resuming) a chat, listing the inbox, and purging history.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this service.
	Repo ConversationRepo
	// Directory resolves participant profiles; nil means ID-only profiles.
	Directory UserDirectory
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, r ConversationRepo, dir UserDirectory) *ConversationService {
	return &ConversationService{DB: db, Repo: r, Directory: dir}
}

// Start finds or creates the conversation between userID and recipientID.
// When isInquiry is set, the caller's first message into the conversation is
// flagged for response-rate tracking (a no-op when they have not written
// yet, matching the explicit "start chat as inquiry" flow where the flag
// arrives after the opening message).
func (s *ConversationService) Start(ctx context.Context, userID, recipientID string, isInquiry bool) (*domain.Conversation, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, ErrEmptyRecipient
	}
	if recipientID == userID {
		return nil, ErrSelfConversation
	}

	conv, err := s.Repo.FindOrCreate(ctx, s.DB, userID, recipientID)
	if err != nil {
		return nil, err
	}

	if isInquiry {
		first, ferr := repo.FirstMessageFrom(ctx, s.DB, conv.ID, userID)
		if ferr == nil {
			if merr := repo.MarkMessageAsInquiry(ctx, s.DB, first.ID); merr != nil {
				return nil, merr
			}
		} else if !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return nil, ferr
		}
	}

	return conv, nil
}

// List returns the user's conversations, newest activity first, with
// participant profiles populated from the directory.
func (s *ConversationService) List(ctx context.Context, userID string) ([]ConversationView, error) {
	convs, err := s.Repo.ListForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		v := ConversationView{Conversation: c}
		for _, pid := range c.Participants() {
			v.Participants = append(v.Participants, s.lookupProfile(ctx, pid))
		}
		out = append(out, v)
	}
	return out, nil
}

// Get fetches a conversation the user participates in.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conv, err := s.Repo.Get(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !conv.Has(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// Purge hard-deletes the conversation's entire message history and resets
// the preview. Only a participant may purge. Returns the number of messages
// removed.
func (s *ConversationService) Purge(ctx context.Context, userID, conversationID string) (int64, error) {
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}

	var removed int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, perr := repo.PurgeConversationMessages(ctx, tx, conv.ID)
		if perr != nil {
			return perr
		}
		removed = n
		return s.Repo.Touch(ctx, tx, conv.ID, "", time.Now().UTC())
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// RebuildPreview recomputes the denormalized LastMessage preview from the
// message log. Recovery tooling for when the cached preview is suspect; the
// message store remains the source of truth.
func (s *ConversationService) RebuildPreview(ctx context.Context, conversationID string) error {
	conv, err := s.Repo.Get(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}

	latest, err := repo.LatestMessage(ctx, s.DB, conv.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.Repo.Touch(ctx, s.DB, conv.ID, "", time.Now().UTC())
		}
		return err
	}
	return s.Repo.Touch(ctx, s.DB, conv.ID, previewFor(latest.Content, latest.MessageType), latest.CreatedAt)
}

// lookupProfile resolves a participant profile, falling back to an ID-only
// profile when no directory is configured or the lookup fails.
func (s *ConversationService) lookupProfile(ctx context.Context, userID string) Profile {
	if s.Directory == nil {
		return Profile{ID: userID}
	}
	p, err := s.Directory.Lookup(ctx, userID)
	if err != nil {
		return Profile{ID: userID}
	}
	if p.ID == "" {
		p.ID = userID
	}
	return p
}
