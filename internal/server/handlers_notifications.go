package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leoconnect/backend/internal/notify"
)

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 50)
	unreadOnly := c.Query("unreadOnly") == "true"
	page, err := h.notify.List(c.Request.Context(), viewer.UID, limit, offset, unreadOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: page.Items, Total: page.Total, HasMore: page.HasMore})
}

func (h *httpHandler) handleUnreadNotifications(c *gin.Context) {
	viewer := currentUser(c)
	count, err := h.notify.UnreadCount(c.Request.Context(), viewer.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	viewer := currentUser(c)
	if err := h.notify.MarkRead(c.Request.Context(), viewer.UID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (h *httpHandler) handleMarkAllNotificationsRead(c *gin.Context) {
	viewer := currentUser(c)
	if err := h.notify.MarkAllRead(c.Request.Context(), viewer.UID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

type preferencesPayload struct {
	Messages bool `json:"messages"`
	Follows  bool `json:"follows"`
	Posts    bool `json:"posts"`
	Likes    bool `json:"likes"`
	Comments bool `json:"comments"`
}

func (h *httpHandler) handleGetPreferences(c *gin.Context) {
	viewer := currentUser(c)
	prefs, err := h.notify.Preferences(c.Request.Context(), viewer.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preferencesPayload{
		Messages: prefs.MessagesEnabled,
		Follows:  prefs.FollowsEnabled,
		Posts:    prefs.PostsEnabled,
		Likes:    prefs.LikesEnabled,
		Comments: prefs.CommentsEnabled,
	})
}

type preferencesUpdatePayload struct {
	Messages *bool `json:"messages"`
	Follows  *bool `json:"follows"`
	Posts    *bool `json:"posts"`
	Likes    *bool `json:"likes"`
	Comments *bool `json:"comments"`
}

func (h *httpHandler) handleUpdatePreferences(c *gin.Context) {
	viewer := currentUser(c)
	var request preferencesUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	prefs, err := h.notify.UpdatePreferences(c.Request.Context(), viewer.UID, notify.PreferencesUpdate{
		Messages: request.Messages,
		Follows:  request.Follows,
		Posts:    request.Posts,
		Likes:    request.Likes,
		Comments: request.Comments,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preferencesPayload{
		Messages: prefs.MessagesEnabled,
		Follows:  prefs.FollowsEnabled,
		Posts:    prefs.PostsEnabled,
		Likes:    prefs.LikesEnabled,
		Comments: prefs.CommentsEnabled,
	})
}

type pushTokenPayload struct {
	Token      string `json:"token"`
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType"`
}

func (h *httpHandler) handleRegisterPushToken(c *gin.Context) {
	viewer := currentUser(c)
	var request pushTokenPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	err := h.notify.RegisterPushToken(c.Request.Context(), viewer.UID, request.Token, request.DeviceID, request.DeviceType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": true})
}

func (h *httpHandler) handleRemovePushToken(c *gin.Context) {
	viewer := currentUser(c)
	var request pushTokenPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.notify.RemovePushToken(c.Request.Context(), viewer.UID, request.Token); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// handleNotificationStream serves a server-sent event stream of realtime
// notification signals for the authenticated user.
func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	viewer := currentUser(c)
	stream, cancel := h.realtime.Subscribe(c.Request.Context(), viewer.UID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: {\"source\":%q,\"at\":%q}\n\n",
				message.EventType, realtimeSourceBackend, message.Timestamp.UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", realtimeEventHeartbeat)
			c.Writer.Flush()
		}
	}
}
