package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	sender := currentUser(c)
	var request sendMessagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	message, err := h.messaging.Send(c.Request.Context(), sender, request.ReceiverID, request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.realtime != nil {
		h.realtime.Publish(RealtimeMessage{
			UserID:    request.ReceiverID,
			EventType: RealtimeEventMessage,
			Timestamp: message.CreatedAt,
		})
	}
	c.JSON(http.StatusCreated, message)
}

func (h *httpHandler) handleConversations(c *gin.Context) {
	viewer := currentUser(c)
	conversations, err := h.messaging.Conversations(c.Request.Context(), viewer.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: conversations, Total: int64(len(conversations)), HasMore: false})
}

func (h *httpHandler) handleUnreadMessages(c *gin.Context) {
	viewer := currentUser(c)
	count, err := h.messaging.UnreadCount(c.Request.Context(), viewer.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

func (h *httpHandler) handleThread(c *gin.Context) {
	viewer := currentUser(c)
	thread, err := h.messaging.Thread(c.Request.Context(), viewer.UID, c.Param("uid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: thread, Total: int64(len(thread)), HasMore: false})
}

func (h *httpHandler) handleDeleteMessage(c *gin.Context) {
	viewer := currentUser(c)
	if err := h.messaging.DeleteMessage(c.Request.Context(), viewer.UID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleDeleteConversation(c *gin.Context) {
	viewer := currentUser(c)
	if err := h.messaging.DeleteConversation(c.Request.Context(), viewer.UID, c.Param("uid")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
