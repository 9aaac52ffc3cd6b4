// Message HTTP handlers.
//
// REST endpoints for message resources:
//   - GET  /messages/{conversationId}       (ascending history, ETag support,
//     optional page/page_size)
//   - POST /messages                        (send; same service path as the
//     websocket command)
//   - POST /messages/{conversationId}/read  (bulk read receipts)
//
// The GET endpoint is the snapshot a reconnecting client fetches before
// re-joining its websocket room; it always reflects server-confirmed state.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
	"github.com/templatehub/chat-backend/internal/repo"
	"github.com/templatehub/chat-backend/internal/services"
	"github.com/templatehub/chat-backend/internal/utils"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for the REST send path. Sender and
// receiver are never part of the payload; the sender is the authenticated
// caller and the receiver is derived from the conversation.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Content        string `json:"content"`
	FileURL        string `json:"file_url"`
	FileType       string `json:"file_type"`
	OriginalName   string `json:"original_name"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse wraps a page of messages and pagination information.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// MarkReadResponse reports how many messages a read receipt covered.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 50
		maxPageSize     = 200
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ListMessages returns the conversation history in ascending order. Without
// query parameters the full log is returned; with page/page_size the result
// is paginated. A weak ETag lets unchanged histories answer 304.
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	conversationID := c.Param("conversationId")

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.msgSvc.(*services.MessageService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, conversationID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, conversationID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	if c.Query("page") == "" && c.Query("page_size") == "" {
		items, err := h.msgSvc.History(ctx, uid, conversationID)
		if err != nil {
			failService(c, err, ErrCodeListFailed)
			return
		}
		ok(c, http.StatusOK, gin.H{"messages": items})
		return
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.msgSvc.HistoryPage(ctx, uid, conversationID, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// PostMessage appends a message over REST. Realtime clients use the
// websocket send_message command instead; both run the same service path,
// so previews, read state, and response tracking behave identically.
func (h *Handlers) PostMessage(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.msgSvc.Send(c.Request.Context(), services.SendInput{
		ConversationID: req.ConversationID,
		SenderID:       uid,
		Content:        req.Content,
		FileURL:        req.FileURL,
		FileType:       req.FileType,
		OriginalName:   req.OriginalName,
	})
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}
	ok(c, http.StatusCreated, msg)
}

// MarkMessagesRead bulk-marks every message the caller received in the
// conversation as read. Safe to repeat.
func (h *Handlers) MarkMessagesRead(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	n, err := h.msgSvc.MarkRead(c.Request.Context(), c.Param("conversationId"), uid)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MarkReadResponse{Updated: n})
}
