package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/leoconnect/backend/internal/clubs"
	"github.com/leoconnect/backend/internal/feed"
	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/messaging"
	"github.com/leoconnect/backend/internal/notify"
	"github.com/leoconnect/backend/internal/users"
	"go.uber.org/zap"
)

// listEnvelope is the shared shape of every list response.
type listEnvelope struct {
	Items   any   `json:"items"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

func envelope(items any, total int64, limit, offset int) listEnvelope {
	return listEnvelope{Items: items, Total: total, HasMore: int64(offset+limit) < total}
}

// respondError translates domain sentinel errors into HTTP statuses. Unknown
// errors are logged and surfaced as opaque 500s.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, graph.ErrUserNotFound),
		errors.Is(err, graph.ErrClubNotFound),
		errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, clubs.ErrClubNotFound),
		errors.Is(err, clubs.ErrDistrictNotFound),
		errors.Is(err, feed.ErrPostNotFound),
		errors.Is(err, feed.ErrCommentNotFound),
		errors.Is(err, feed.ErrEventNotFound),
		errors.Is(err, messaging.ErrMessageNotFound),
		errors.Is(err, messaging.ErrRecipientNotFound),
		errors.Is(err, notify.ErrNotificationNotFound),
		errors.Is(err, graph.ErrNotFollowing):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, graph.ErrSelfFollow),
		errors.Is(err, graph.ErrAlreadyFollowing),
		errors.Is(err, messaging.ErrSelfMessage),
		errors.Is(err, feed.ErrInvalidContent),
		errors.Is(err, feed.ErrNoClubs),
		errors.Is(err, messaging.ErrInvalidContent),
		errors.Is(err, users.ErrInvalidProfile),
		errors.Is(err, clubs.ErrInvalidClub),
		errors.Is(err, clubs.ErrDistrictExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, feed.ErrForbidden),
		errors.Is(err, messaging.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

// pagination parses limit/offset query parameters with the given default
// page size.
func pagination(c *gin.Context, defaultLimit int) (int, int) {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
