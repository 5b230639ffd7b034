// Package server exposes the HTTP API: route registration, authentication
// middleware, and request/response mapping onto the domain services.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/leoconnect/backend/internal/auth"
	"github.com/leoconnect/backend/internal/clubs"
	"github.com/leoconnect/backend/internal/feed"
	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/messaging"
	"github.com/leoconnect/backend/internal/model"
	"github.com/leoconnect/backend/internal/notify"
	"github.com/leoconnect/backend/internal/users"
	"go.uber.org/zap"
)

const (
	userContextKey  = "leoconnect_user"
	adminContextKey = "leoconnect_admin"
)

var (
	errMissingGoogleVerifier = errors.New("google verifier dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingUserService    = errors.New("user service dependency required")
	errMissingGraphService   = errors.New("graph service dependency required")
	errMissingFeedService    = errors.New("feed service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, claims auth.GoogleClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type AdminAuthenticator interface {
	Login(ctx context.Context, email, password string) (auth.AdminSession, error)
	Validate(ctx context.Context, token string) (model.AdminAccount, error)
}

type Dependencies struct {
	GoogleVerifier GoogleVerifier
	TokenManager   BackendTokenManager
	AdminAuth      AdminAuthenticator
	Users          *users.Service
	Clubs          *clubs.Service
	Graph          *graph.Service
	Feed           *feed.Service
	Messaging      *messaging.Service
	Notify         *notify.Service
	Realtime       *RealtimeDispatcher
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Graph == nil {
		return nil, errMissingGraphService
	}
	if deps.Feed == nil {
		return nil, errMissingFeedService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:  deps.GoogleVerifier,
		tokens:    deps.TokenManager,
		adminAuth: deps.AdminAuth,
		users:     deps.Users,
		clubs:     deps.Clubs,
		graph:     deps.Graph,
		feed:      deps.Feed,
		messaging: deps.Messaging,
		notify:    deps.Notify,
		realtime:  deps.Realtime,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/google", handler.handleGoogleAuth)
	router.POST("/auth/admin/login", handler.handleAdminLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	{
		protected.GET("/users/me", handler.handleCurrentUser)
		protected.PUT("/users/me", handler.handleUpdateProfile)
		protected.POST("/users/me/quickstart", handler.handleQuickStart)
		protected.GET("/users/search", handler.handleSearchUsers)
		protected.GET("/users/:uid", handler.handleUserProfile)
		protected.GET("/users/:uid/posts", handler.handleUserPosts)
		protected.GET("/users/:uid/followers", handler.handleUserFollowers)
		protected.GET("/users/:uid/following", handler.handleUserFollowing)
		protected.POST("/users/:uid/follow", handler.handleFollowUser)
		protected.DELETE("/users/:uid/follow", handler.handleUnfollowUser)

		protected.GET("/clubs", handler.handleListClubs)
		protected.GET("/clubs/search", handler.handleSearchClubs)
		protected.GET("/clubs/:id", handler.handleGetClub)
		protected.GET("/clubs/:id/posts", handler.handleClubPosts)
		protected.GET("/clubs/:id/followers", handler.handleClubFollowers)
		protected.GET("/clubs/:id/members", handler.handleClubMembers)
		protected.POST("/clubs/:id/follow", handler.handleFollowClub)
		protected.DELETE("/clubs/:id/follow", handler.handleUnfollowClub)
		protected.GET("/districts", handler.handleListDistricts)

		protected.GET("/search", handler.handleGlobalSearch)
		protected.GET("/search/autocomplete", handler.handleSearchAutocomplete)

		protected.GET("/feed", handler.handleFeed)
		protected.GET("/explore", handler.handleExplore)
		protected.GET("/posts/search", handler.handleSearchPosts)
		protected.POST("/posts", handler.handleCreatePost)
		protected.GET("/posts/:id", handler.handleGetPost)
		protected.DELETE("/posts/:id", handler.handleDeletePost)
		protected.POST("/posts/:id/like", handler.handleTogglePostLike)
		protected.POST("/posts/:id/share", handler.handleSharePost)
		protected.GET("/posts/:id/comments", handler.handleListComments)
		protected.POST("/posts/:id/comments", handler.handleAddComment)
		protected.DELETE("/comments/:id", handler.handleDeleteComment)
		protected.POST("/comments/:id/like", handler.handleToggleCommentLike)

		protected.GET("/events", handler.handleListEvents)
		protected.POST("/events", handler.handleCreateEvent)
		protected.GET("/events/:id", handler.handleGetEvent)
		protected.PUT("/events/:id", handler.handleUpdateEvent)
		protected.DELETE("/events/:id", handler.handleDeleteEvent)
		protected.POST("/events/:id/rsvp", handler.handleToggleRSVP)

		protected.POST("/messages", handler.handleSendMessage)
		protected.GET("/messages/conversations", handler.handleConversations)
		protected.GET("/messages/unread-count", handler.handleUnreadMessages)
		protected.GET("/messages/thread/:uid", handler.handleThread)
		protected.DELETE("/messages/message/:id", handler.handleDeleteMessage)
		protected.DELETE("/messages/conversation/:uid", handler.handleDeleteConversation)

		protected.GET("/notifications", handler.handleListNotifications)
		protected.GET("/notifications/stream", handler.handleNotificationStream)
		protected.GET("/notifications/unread-count", handler.handleUnreadNotifications)
		protected.POST("/notifications/:id/read", handler.handleMarkNotificationRead)
		protected.POST("/notifications/read-all", handler.handleMarkAllNotificationsRead)
		protected.GET("/notifications/preferences", handler.handleGetPreferences)
		protected.PUT("/notifications/preferences", handler.handleUpdatePreferences)
		protected.POST("/notifications/push-token", handler.handleRegisterPushToken)
		protected.DELETE("/notifications/push-token", handler.handleRemovePushToken)
	}

	if deps.AdminAuth != nil {
		admin := router.Group("/admin")
		admin.Use(handler.authorizeAdmin)
		{
			admin.GET("/stats", handler.handleAdminStats)
			admin.POST("/clubs", handler.handleAdminCreateClub)
			admin.PUT("/clubs/:id", handler.handleAdminUpdateClub)
			admin.DELETE("/clubs/:id", handler.handleAdminDeleteClub)
			admin.POST("/districts", handler.handleAdminCreateDistrict)
			admin.DELETE("/districts/:name", handler.handleAdminDeleteDistrict)
			admin.GET("/users", handler.handleAdminListUsers)
			admin.POST("/users", handler.handleAdminCreateUser)
			admin.DELETE("/users/:uid", handler.handleAdminDeleteUser)
			admin.DELETE("/posts/:id", handler.handleAdminDeletePost)
		}
	}

	return router, nil
}

type httpHandler struct {
	verifier  GoogleVerifier
	tokens    BackendTokenManager
	adminAuth AdminAuthenticator
	users     *users.Service
	clubs     *clubs.Service
	graph     *graph.Service
	feed      *feed.Service
	messaging *messaging.Service
	notify    *notify.Service
	realtime  *RealtimeDispatcher
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	TokenType   string        `json:"token_type"`
	User        users.Profile `json:"user"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.users.EnsureUser(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to resolve user for validated claims", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user_resolution_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	profile, err := h.users.Profile(c.Request.Context(), user.UID, user.UID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        profile,
	})
}

type adminLoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleAdminLogin(c *gin.Context) {
	if h.adminAuth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	var request adminLoginPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	session, err := h.adminAuth.Login(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAdminInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}
		h.logger.Error("admin login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.Get(c.Request.Context(), subject)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("user lookup failed during authorization", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Set(userContextKey, user)
	c.Next()
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	account, err := h.adminAuth.Validate(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("admin token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(adminContextKey, account)
	c.Next()
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func currentUser(c *gin.Context) model.User {
	value, _ := c.Get(userContextKey)
	user, _ := value.(model.User)
	return user
}
