// Conversation HTTP handlers.
//
// REST endpoints for conversation resources:
//   - POST   /conversations                    (find-or-create with a recipient)
//   - GET    /conversations                    (inbox listing, ETag support)
//   - DELETE /messages/{conversationId}        (purge history)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results (including the service error sentinels)
// into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
	"github.com/templatehub/chat-backend/internal/repo"
	"github.com/templatehub/chat-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ConversationService defines conversation lifecycle operations consumed by
// HTTP handlers. Implementations must be safe for concurrent use and honor
// the provided context.
type ConversationService interface {
	// Start finds or creates the conversation with recipientID.
	Start(ctx context.Context, userID, recipientID string, isInquiry bool) (*domain.Conversation, error)
	// List returns the user's inbox, newest activity first.
	List(ctx context.Context, userID string) ([]services.ConversationView, error)
	// Purge removes the conversation's message history.
	Purge(ctx context.Context, userID, conversationID string) (int64, error)
}

// MessageService defines message operations consumed by HTTP handlers.
type MessageService interface {
	// Send appends a message; receiver and type are derived server-side.
	Send(ctx context.Context, in services.SendInput) (*domain.Message, error)
	// History returns the full ascending message log.
	History(ctx context.Context, userID, conversationID string) ([]domain.Message, error)
	// HistoryPage returns one page of the log plus the total count.
	HistoryPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
	// MarkRead bulk-marks received messages as read.
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

// StatsService defines the response-rate statistics contract.
type StatsService interface {
	ResponseStats(ctx context.Context, userID string) (services.ResponseStats, error)
	Detailed(ctx context.Context, userID string, limit int) (services.DetailedStats, error)
}

//
// Handler wiring
//

// Handlers groups the REST endpoints for conversations, messages, uploads,
// and stats.
type Handlers struct {
	convSvc  ConversationService
	msgSvc   MessageService
	statsSvc StatsService

	// uploadDir is where multipart attachments are stored.
	uploadDir string
}

// New constructs a Handlers instance bound to the given services.
func New(convSvc ConversationService, msgSvc MessageService, statsSvc StatsService, uploadDir string) *Handlers {
	return &Handlers{convSvc: convSvc, msgSvc: msgSvc, statsSvc: statsSvc, uploadDir: uploadDir}
}

// userID extracts the authenticated user id from the Gin context (set by the
// auth middleware). Falls back to the X-User-ID header so handler tests can
// run without minting tokens. Empty means unauthenticated.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// requireUser resolves the caller identity or answers 401.
func requireUser(c *gin.Context) (string, bool) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}

// failService translates service sentinel errors into HTTP responses, using
// fallbackCode for unexpected failures.
func failService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrNotSender):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrContentTooLong),
		errors.Is(err, services.ErrNotEditable),
		errors.Is(err, services.ErrSelfConversation),
		errors.Is(err, services.ErrEmptyRecipient):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// DTOs
//

// StartConversationRequest is the JSON payload for starting a conversation.
type StartConversationRequest struct {
	// RecipientID is the other participant.
	RecipientID string `json:"recipient_id" binding:"required"`
	// IsInquiry marks the caller's first message for response tracking.
	IsInquiry bool `json:"is_inquiry"`
}

// PurgeResponse reports how many messages a purge removed.
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

//
// Handlers
//

// StartConversation finds or creates the conversation between the caller
// and recipient_id. Always returns the single canonical conversation for
// the pair, so retries and either-direction starts are safe.
func (h *Handlers) StartConversation(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	conv, err := h.convSvc.Start(c.Request.Context(), uid, req.RecipientID, req.IsInquiry)
	if err != nil {
		failService(c, err, ErrCodeStartFailed)
		return
	}
	ok(c, http.StatusOK, conv)
}

// ListConversations returns the caller's inbox, newest activity first, with
// participant profiles. Supports a weak ETag so unchanged inboxes answer
// 304 without hitting the directory.
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.convSvc.(*services.ConversationService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ConversationsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.convSvc.List(ctx, uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"conversations": items})
}

// PurgeConversation hard-deletes the conversation's entire message history.
// The conversation record itself survives with a reset preview.
func (h *Handlers) PurgeConversation(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	deleted, err := h.convSvc.Purge(c.Request.Context(), uid, c.Param("conversationId"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, PurgeResponse{Deleted: deleted})
}
