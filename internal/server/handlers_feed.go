package server

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leoconnect/backend/internal/feed"
)

func (h *httpHandler) handleFeed(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 20)
	posts, total, err := h.feed.Feed(c.Request.Context(), viewer.UID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(posts, total, limit, offset))
}

func (h *httpHandler) handleExplore(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 20)
	posts, total, err := h.feed.Explore(c.Request.Context(), viewer.UID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(posts, total, limit, offset))
}

func (h *httpHandler) handleSearchPosts(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 20)
	posts, total, err := h.feed.SearchPosts(c.Request.Context(), viewer.UID, c.Query("q"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(posts, total, limit, offset))
}

type createPostPayload struct {
	Content       string `json:"content"`
	ClubID        string `json:"clubId"`
	ImageBase64   string `json:"imageBase64"`
	ImageMimeType string `json:"imageMimeType"`
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	author := currentUser(c)
	var request createPostPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	imageBytes, ok := decodeImage(c, request.ImageBase64)
	if !ok {
		return
	}
	post, err := h.feed.CreatePost(c.Request.Context(), author, feed.CreatePostInput{
		Content:       request.Content,
		ClubID:        request.ClubID,
		ImageBytes:    imageBytes,
		ImageMimeType: request.ImageMimeType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	viewer := currentUser(c)
	post, err := h.feed.GetPost(c.Request.Context(), viewer.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	actor := currentUser(c)
	if err := h.feed.DeletePost(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleTogglePostLike(c *gin.Context) {
	actor := currentUser(c)
	state, err := h.feed.TogglePostLike(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *httpHandler) handleSharePost(c *gin.Context) {
	actor := currentUser(c)
	result, err := h.feed.SharePost(c.Request.Context(), actor.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	viewer := currentUser(c)
	comments, total, err := h.feed.ListComments(c.Request.Context(), viewer.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: comments, Total: total, HasMore: false})
}

type addCommentPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	author := currentUser(c)
	var request addCommentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	comment, err := h.feed.AddComment(c.Request.Context(), author, c.Param("id"), request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	actor := currentUser(c)
	if err := h.feed.DeleteComment(c.Request.Context(), actor.UID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleToggleCommentLike(c *gin.Context) {
	actor := currentUser(c)
	state, err := h.feed.ToggleCommentLike(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *httpHandler) handleListEvents(c *gin.Context) {
	viewer := currentUser(c)
	limit, _ := pagination(c, 20)
	events, err := h.feed.ListEvents(c.Request.Context(), viewer.UID, c.Query("clubId"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: events, Total: int64(len(events)), HasMore: false})
}

type createEventPayload struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	EventDate     time.Time `json:"eventDate"`
	ClubID        string    `json:"clubId"`
	ImageBase64   string    `json:"imageBase64"`
	ImageMimeType string    `json:"imageMimeType"`
}

func (h *httpHandler) handleCreateEvent(c *gin.Context) {
	author := currentUser(c)
	var request createEventPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	imageBytes, ok := decodeImage(c, request.ImageBase64)
	if !ok {
		return
	}
	event, err := h.feed.CreateEvent(c.Request.Context(), author, feed.CreateEventInput{
		Name:          request.Name,
		Description:   request.Description,
		EventDate:     request.EventDate,
		ClubID:        request.ClubID,
		ImageBytes:    imageBytes,
		ImageMimeType: request.ImageMimeType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *httpHandler) handleGetEvent(c *gin.Context) {
	viewer := currentUser(c)
	event, err := h.feed.GetEvent(c.Request.Context(), viewer.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

type updateEventPayload struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	EventDate     *time.Time `json:"eventDate"`
	ImageBase64   string     `json:"imageBase64"`
	ImageMimeType string     `json:"imageMimeType"`
}

func (h *httpHandler) handleUpdateEvent(c *gin.Context) {
	actor := currentUser(c)
	var request updateEventPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	imageBytes, ok := decodeImage(c, request.ImageBase64)
	if !ok {
		return
	}
	event, err := h.feed.UpdateEvent(c.Request.Context(), actor, c.Param("id"), feed.UpdateEventInput{
		Name:          request.Name,
		Description:   request.Description,
		EventDate:     request.EventDate,
		ImageBytes:    imageBytes,
		ImageMimeType: request.ImageMimeType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *httpHandler) handleDeleteEvent(c *gin.Context) {
	actor := currentUser(c)
	if err := h.feed.DeleteEvent(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleToggleRSVP(c *gin.Context) {
	actor := currentUser(c)
	state, err := h.feed.ToggleRSVP(c.Request.Context(), actor.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// decodeImage decodes an optional base64 image field. On malformed input it
// writes the error response and reports false.
func decodeImage(c *gin.Context, encoded string) ([]byte, bool) {
	if encoded == "" {
		return nil, true
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "image must be base64 encoded"})
		return nil, false
	}
	return decoded, true
}
