package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leoconnect/backend/internal/clubs"
	"github.com/leoconnect/backend/internal/model"
	"github.com/leoconnect/backend/internal/users"
)

func (h *httpHandler) handleAdminStats(c *gin.Context) {
	stats, err := h.clubs.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type clubUpsertPayload struct {
	Name          string `json:"name"`
	District      string `json:"district"`
	DistrictID    string `json:"districtId"`
	Description   string `json:"description"`
	LogoURL       string `json:"logoUrl"`
	CoverImageURL string `json:"coverImageUrl"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	FacebookURL   string `json:"facebookUrl"`
	InstagramURL  string `json:"instagramUrl"`
	TwitterURL    string `json:"twitterUrl"`
	IsOfficial    bool   `json:"isOfficial"`
}

func (p clubUpsertPayload) toInput() clubs.UpsertInput {
	return clubs.UpsertInput{
		Name:          p.Name,
		District:      p.District,
		DistrictID:    p.DistrictID,
		Description:   p.Description,
		LogoURL:       p.LogoURL,
		CoverImageURL: p.CoverImageURL,
		Email:         p.Email,
		Phone:         p.Phone,
		Address:       p.Address,
		FacebookURL:   p.FacebookURL,
		InstagramURL:  p.InstagramURL,
		TwitterURL:    p.TwitterURL,
		IsOfficial:    p.IsOfficial,
	}
}

func (h *httpHandler) handleAdminCreateClub(c *gin.Context) {
	var request clubUpsertPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	club, err := h.clubs.Create(c.Request.Context(), request.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, club)
}

func (h *httpHandler) handleAdminUpdateClub(c *gin.Context) {
	var request clubUpsertPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	club, err := h.clubs.Update(c.Request.Context(), c.Param("id"), request.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, club)
}

func (h *httpHandler) handleAdminDeleteClub(c *gin.Context) {
	if err := h.clubs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleAdminListUsers(c *gin.Context) {
	limit, offset := pagination(c, 50)
	accounts, total, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(accounts, total, limit, offset))
}

type adminCreateUserPayload struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	LeoID       string `json:"leoId"`
	IsWebmaster bool   `json:"isWebmaster"`
}

func (h *httpHandler) handleAdminCreateUser(c *gin.Context) {
	var request adminCreateUserPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.users.Create(c.Request.Context(), users.CreateInput{
		DisplayName: request.DisplayName,
		Email:       request.Email,
		LeoID:       request.LeoID,
		IsWebmaster: request.IsWebmaster,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type districtCreatePayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleAdminCreateDistrict(c *gin.Context) {
	var request districtCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	district, err := h.clubs.CreateDistrict(c.Request.Context(), request.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, district)
}

func (h *httpHandler) handleAdminDeleteDistrict(c *gin.Context) {
	if err := h.clubs.DeleteDistrict(c.Request.Context(), c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleAdminDeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("uid")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleAdminDeletePost removes any post through the moderation surface,
// reusing the owner-or-admin cascade with a synthetic administrator actor.
func (h *httpHandler) handleAdminDeletePost(c *gin.Context) {
	actor := model.User{UID: "admin", IsWebmaster: true}
	if err := h.feed.DeletePost(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
