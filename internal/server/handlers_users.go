package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leoconnect/backend/internal/users"
)

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	user := currentUser(c)
	profile, err := h.users.Profile(c.Request.Context(), user.UID, user.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type updateProfilePayload struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	PhotoURL    *string `json:"photoUrl"`
	LeoID       *string `json:"leoId"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	user := currentUser(c)
	var request updateProfilePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	_, err := h.users.UpdateProfile(c.Request.Context(), user.UID, users.UpdateProfileInput{
		DisplayName: request.DisplayName,
		Bio:         request.Bio,
		PhotoURL:    request.PhotoURL,
		LeoID:       request.LeoID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	profile, err := h.users.Profile(c.Request.Context(), user.UID, user.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type quickStartPayload struct {
	DisplayName string `json:"displayName"`
	LeoID       string `json:"leoId"`
	ClubID      string `json:"clubId"`
}

func (h *httpHandler) handleQuickStart(c *gin.Context) {
	user := currentUser(c)
	var request quickStartPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	_, err := h.users.QuickStart(c.Request.Context(), user.UID, users.QuickStartInput{
		DisplayName: request.DisplayName,
		LeoID:       request.LeoID,
		ClubID:      request.ClubID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	profile, err := h.users.Profile(c.Request.Context(), user.UID, user.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleSearchUsers(c *gin.Context) {
	limit, _ := pagination(c, 20)
	results, err := h.users.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: results, Total: int64(len(results)), HasMore: false})
}

func (h *httpHandler) handleUserProfile(c *gin.Context) {
	viewer := currentUser(c)
	profile, err := h.users.Profile(c.Request.Context(), viewer.UID, c.Param("uid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleUserPosts(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 20)
	posts, total, err := h.feed.ListUserPosts(c.Request.Context(), viewer.UID, c.Param("uid"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(posts, total, limit, offset))
}

func (h *httpHandler) handleUserFollowers(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 50)
	page, err := h.graph.ListFollowers(c.Request.Context(), viewer.UID, c.Param("uid"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: page.Users, Total: page.Total, HasMore: page.HasMore})
}

func (h *httpHandler) handleUserFollowing(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 50)
	page, err := h.graph.ListFollowing(c.Request.Context(), viewer.UID, c.Param("uid"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: page.Users, Total: page.Total, HasMore: page.HasMore})
}

func (h *httpHandler) handleFollowUser(c *gin.Context) {
	viewer := currentUser(c)
	target := c.Param("uid")
	counts, err := h.graph.Follow(c.Request.Context(), viewer.UID, target)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.notify != nil {
		h.notify.NewFollow(c.Request.Context(), viewer, target)
	}
	c.JSON(http.StatusOK, counts)
}

func (h *httpHandler) handleUnfollowUser(c *gin.Context) {
	viewer := currentUser(c)
	counts, err := h.graph.Unfollow(c.Request.Context(), viewer.UID, c.Param("uid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
