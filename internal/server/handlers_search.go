package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleGlobalSearch composes the per-entity searches into one combined
// result set.
func (h *httpHandler) handleGlobalSearch(c *gin.Context) {
	viewer := currentUser(c)
	query := c.Query("q")
	limit, _ := pagination(c, 20)

	userResults, err := h.users.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	clubResults, err := h.clubs.Search(c.Request.Context(), viewer.UID, query, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	postResults, _, err := h.feed.SearchPosts(c.Request.Context(), viewer.UID, query, limit, 0)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": userResults,
		"clubs": clubResults,
		"posts": postResults,
	})
}

type searchSuggestion struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
}

// handleSearchAutocomplete serves lightweight typeahead suggestions drawn
// from club names, district names and post content.
func (h *httpHandler) handleSearchAutocomplete(c *gin.Context) {
	viewer := currentUser(c)
	query := strings.TrimSpace(c.Query("q"))
	limit, _ := pagination(c, 10)
	suggestions := make([]searchSuggestion, 0, limit)
	if query == "" {
		c.JSON(http.StatusOK, listEnvelope{Items: suggestions, Total: 0, HasMore: false})
		return
	}

	clubResults, err := h.clubs.Search(c.Request.Context(), viewer.UID, query, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for _, club := range clubResults {
		suggestions = append(suggestions, searchSuggestion{Type: "club", ID: club.ClubID, Value: club.Name})
	}

	districts, err := h.clubs.Districts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	needle := strings.ToLower(query)
	for _, district := range districts {
		if strings.Contains(strings.ToLower(district.Name), needle) {
			suggestions = append(suggestions, searchSuggestion{Type: "district", Value: district.Name})
		}
	}

	postResults, _, err := h.feed.SearchPosts(c.Request.Context(), viewer.UID, query, limit, 0)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for _, post := range postResults {
		suggestions = append(suggestions, searchSuggestion{Type: "post", ID: post.PostID, Value: snippet(post.Content)})
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	c.JSON(http.StatusOK, listEnvelope{Items: suggestions, Total: int64(len(suggestions)), HasMore: false})
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= 80 {
		return content
	}
	return string(runes[:80])
}
