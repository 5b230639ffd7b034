package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListClubs(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 50)
	items, total, err := h.clubs.List(c.Request.Context(), viewer.UID, c.Query("district"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(items, total, limit, offset))
}

func (h *httpHandler) handleSearchClubs(c *gin.Context) {
	viewer := currentUser(c)
	limit, _ := pagination(c, 20)
	items, err := h.clubs.Search(c.Request.Context(), viewer.UID, c.Query("q"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: items, Total: int64(len(items)), HasMore: false})
}

func (h *httpHandler) handleGetClub(c *gin.Context) {
	viewer := currentUser(c)
	club, err := h.clubs.Get(c.Request.Context(), viewer.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, club)
}

func (h *httpHandler) handleClubPosts(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 20)
	posts, total, err := h.feed.ListClubPosts(c.Request.Context(), viewer.UID, c.Param("id"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(posts, total, limit, offset))
}

func (h *httpHandler) handleClubFollowers(c *gin.Context) {
	viewer := currentUser(c)
	limit, offset := pagination(c, 50)
	page, err := h.graph.ListClubFollowers(c.Request.Context(), viewer.UID, c.Param("id"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: page.Users, Total: page.Total, HasMore: page.HasMore})
}

func (h *httpHandler) handleClubMembers(c *gin.Context) {
	limit, offset := pagination(c, 50)
	members, total, err := h.clubs.Members(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(members, total, limit, offset))
}

func (h *httpHandler) handleFollowClub(c *gin.Context) {
	viewer := currentUser(c)
	counts, err := h.graph.FollowClub(c.Request.Context(), viewer.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *httpHandler) handleUnfollowClub(c *gin.Context) {
	viewer := currentUser(c)
	counts, err := h.graph.UnfollowClub(c.Request.Context(), viewer.UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *httpHandler) handleListDistricts(c *gin.Context) {
	districts, err := h.clubs.Districts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	type districtPayload struct {
		Name         string `json:"name"`
		TotalClubs   int64  `json:"totalClubs"`
		TotalMembers int64  `json:"totalMembers"`
	}
	items := make([]districtPayload, 0, len(districts))
	for _, district := range districts {
		items = append(items, districtPayload{
			Name:         district.Name,
			TotalClubs:   district.TotalClubs,
			TotalMembers: district.TotalMembers,
		})
	}
	c.JSON(http.StatusOK, listEnvelope{Items: items, Total: int64(len(items)), HasMore: false})
}
