// Stats HTTP handlers.
//
// Response-rate statistics endpoints consumed by the seller profile and the
// external stats aggregator:
//   - GET /stats/response            (caller's own aggregate)
//   - GET /stats/response/:userId    (public aggregate for any seller)
//   - GET /stats/response/detailed   (aggregate plus recent inquiries)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/templatehub/chat-backend/internal/utils"
)

// ResponseStats returns the caller's response-rate aggregate.
func (h *Handlers) ResponseStats(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	stats, err := h.statsSvc.ResponseStats(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}

// ResponseStatsFor returns the aggregate for an arbitrary seller. The
// numbers are public profile data; inquiry contents are not exposed here.
func (h *Handlers) ResponseStatsFor(c *gin.Context) {
	if _, authed := requireUser(c); !authed {
		return
	}
	target := c.Param("userId")
	if target == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id required")
		return
	}

	stats, err := h.statsSvc.ResponseStats(c.Request.Context(), target)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}

// DetailedResponseStats returns the caller's aggregate plus their newest
// inquiries. Only the inquiry owner may see the detail rows.
func (h *Handlers) DetailedResponseStats(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 5)

	stats, err := h.statsSvc.Detailed(c.Request.Context(), uid, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}
