// Package notify turns engagement events into stored notifications and
// best-effort push deliveries, fanned out through a bounded dispatcher.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leoconnect/backend/internal/graph"
	"github.com/leoconnect/backend/internal/ids"
	"github.com/leoconnect/backend/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notification categories. Each maps to one preference gate.
const (
	TypeMessage     = "message"
	TypeFollow      = "follow"
	TypeNewPost     = "new_post"
	TypeLike        = "like"
	TypeCommentLike = "comment_like"
	TypeComment     = "comment"
)

var (
	// ErrNotificationNotFound indicates the subject notification does not
	// exist or belongs to another user.
	ErrNotificationNotFound = errors.New("notify: notification not found")
)

// PushDispatcher delivers one rendered notification to a device token.
type PushDispatcher interface {
	Deliver(ctx context.Context, token model.PushToken, title, body string) error
}

// EventSink receives a signal whenever a notification is stored, for
// realtime delivery to connected clients.
type EventSink interface {
	Publish(userID, eventType string, at time.Time)
}

// ServiceConfig describes the dependencies of the notification service.
type ServiceConfig struct {
	Database   *gorm.DB
	Graph      *graph.Service
	Dispatcher *Dispatcher
	Push       PushDispatcher
	Sink       EventSink
	IDs        ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service records notifications and manages preferences and push tokens.
type Service struct {
	db         *gorm.DB
	graph      *graph.Service
	dispatcher *Dispatcher
	push       PushDispatcher
	sink       EventSink
	ids        ids.Provider
	now        func() time.Time
	logger     *zap.Logger
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notify: database connection required")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("notify: graph service required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("notify: dispatcher required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	provider := cfg.IDs
	if provider == nil {
		provider = ids.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		graph:      cfg.Graph,
		dispatcher: cfg.Dispatcher,
		push:       cfg.Push,
		sink:       cfg.Sink,
		ids:        provider,
		now:        clock,
		logger:     logger,
	}, nil
}

// Notification is a stored notification as exposed to clients.
type Notification struct {
	NotificationID string          `json:"notificationId"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	Data           json.RawMessage `json:"data"`
	IsRead         bool            `json:"isRead"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Page is a window of notifications with pagination context.
type Page struct {
	Items   []Notification `json:"items"`
	Total   int64          `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// NewMessage notifies the receiver of a direct message.
func (s *Service) NewMessage(ctx context.Context, sender model.User, receiverID, messageID, preview string) {
	payload := map[string]string{"senderId": sender.UID, "messageId": messageID}
	title := fmt.Sprintf("New message from %s", sender.DisplayName)
	s.enqueue(receiverID, TypeMessage, title, preview, payload)
}

// NewFollow notifies a user of a new follower.
func (s *Service) NewFollow(ctx context.Context, follower model.User, followeeID string) {
	payload := map[string]string{"followerId": follower.UID}
	title := fmt.Sprintf("%s started following you", follower.DisplayName)
	s.enqueue(followeeID, TypeFollow, title, "", payload)
}

// PostCreated fans a new-post notification out to every follower of the
// author. The follower list is resolved inside the dispatched task so the
// caller returns immediately.
func (s *Service) PostCreated(ctx context.Context, author model.User, postID, preview string) {
	authorID := author.UID
	displayName := author.DisplayName
	s.dispatcher.Enqueue(func(taskCtx context.Context) error {
		followerIDs, err := s.graph.FollowerIDs(taskCtx, authorID)
		if err != nil {
			return fmt.Errorf("resolve followers of %s: %w", authorID, err)
		}
		payload := map[string]string{"authorId": authorID, "postId": postID}
		title := fmt.Sprintf("%s shared a new post", displayName)
		var firstErr error
		for _, followerID := range followerIDs {
			if err := s.record(taskCtx, followerID, TypeNewPost, title, preview, payload); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}

// PostLiked notifies the post owner of a like.
func (s *Service) PostLiked(ctx context.Context, actor model.User, ownerID, postID string) {
	payload := map[string]string{"actorId": actor.UID, "postId": postID}
	title := fmt.Sprintf("%s liked your post", actor.DisplayName)
	s.enqueue(ownerID, TypeLike, title, "", payload)
}

// CommentLiked notifies the comment owner of a like.
func (s *Service) CommentLiked(ctx context.Context, actor model.User, ownerID, commentID string) {
	payload := map[string]string{"actorId": actor.UID, "commentId": commentID}
	title := fmt.Sprintf("%s liked your comment", actor.DisplayName)
	s.enqueue(ownerID, TypeCommentLike, title, "", payload)
}

// CommentAdded notifies the post owner of a new comment.
func (s *Service) CommentAdded(ctx context.Context, actor model.User, ownerID, postID, preview string) {
	payload := map[string]string{"actorId": actor.UID, "postId": postID}
	title := fmt.Sprintf("%s commented on your post", actor.DisplayName)
	s.enqueue(ownerID, TypeComment, title, preview, payload)
}

func (s *Service) enqueue(recipientID, notificationType, title, body string, payload map[string]string) {
	s.dispatcher.Enqueue(func(taskCtx context.Context) error {
		return s.record(taskCtx, recipientID, notificationType, title, body, payload)
	})
}

// record persists one notification if the recipient's preference gate for
// the category is enabled, then attempts push delivery.
func (s *Service) record(ctx context.Context, recipientID, notificationType, title, body string, payload map[string]string) error {
	prefs, err := s.Preferences(ctx, recipientID)
	if err != nil {
		return err
	}
	if !categoryEnabled(prefs, notificationType) {
		return nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	notificationID, err := s.ids.NewID()
	if err != nil {
		return err
	}
	notification := model.Notification{
		ID:        notificationID,
		UserID:    recipientID,
		Type:      notificationType,
		Title:     title,
		Body:      body,
		Payload:   string(encoded),
		IsRead:    false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return err
	}

	if s.sink != nil {
		s.sink.Publish(recipientID, notificationType, notification.CreatedAt)
	}
	s.deliverPush(ctx, recipientID, title, body)
	return nil
}

func (s *Service) deliverPush(ctx context.Context, recipientID, title, body string) {
	if s.push == nil {
		return
	}
	var tokens []model.PushToken
	if err := s.db.WithContext(ctx).Where("user_id = ?", recipientID).Find(&tokens).Error; err != nil {
		s.logger.Warn("push token lookup failed", zap.String("user", recipientID), zap.Error(err))
		return
	}
	for _, token := range tokens {
		if err := s.push.Deliver(ctx, token, title, body); err != nil {
			s.logger.Warn("push delivery failed",
				zap.String("user", recipientID), zap.String("device", token.DeviceID), zap.Error(err))
		}
	}
}

func categoryEnabled(prefs model.NotificationPreferences, notificationType string) bool {
	switch notificationType {
	case TypeMessage:
		return prefs.MessagesEnabled
	case TypeFollow:
		return prefs.FollowsEnabled
	case TypeNewPost:
		return prefs.PostsEnabled
	case TypeLike, TypeCommentLike:
		return prefs.LikesEnabled
	case TypeComment:
		return prefs.CommentsEnabled
	default:
		return true
	}
}

// List returns the user's notifications, newest first, optionally narrowed
// to unread ones.
func (s *Service) List(ctx context.Context, userID string, limit, offset int, unreadOnly bool) (Page, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	scope := s.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		scope = scope.Where("is_read = ?", false)
	}
	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page{}, err
	}
	var rows []model.Notification
	err := scope.Session(&gorm.Session{}).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return Page{}, err
	}
	items := make([]Notification, 0, len(rows))
	for _, row := range rows {
		data := json.RawMessage(row.Payload)
		if len(data) == 0 {
			data = json.RawMessage("{}")
		}
		items = append(items, Notification{
			NotificationID: row.ID,
			Type:           row.Type,
			Title:          row.Title,
			Body:           row.Body,
			Data:           data,
			IsRead:         row.IsRead,
			CreatedAt:      row.CreatedAt,
		})
	}
	return Page{Items: items, Total: total, HasMore: int64(offset+limit) < total}, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

// Preferences returns the user's notification gates, creating an all-enabled
// row on first access.
func (s *Service) Preferences(ctx context.Context, userID string) (model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NotificationPreferences{}, err
	}
	now := s.now().UTC()
	prefs = model.NotificationPreferences{
		UserID:          userID,
		MessagesEnabled: true,
		FollowsEnabled:  true,
		PostsEnabled:    true,
		LikesEnabled:    true,
		CommentsEnabled: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&prefs).Error
	if err != nil {
		return model.NotificationPreferences{}, err
	}
	return prefs, nil
}

// PreferencesUpdate carries a partial preference update; nil gates are
// untouched.
type PreferencesUpdate struct {
	Messages *bool
	Follows  *bool
	Posts    *bool
	Likes    *bool
	Comments *bool
}

// UpdatePreferences applies a partial update and returns the result.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (model.NotificationPreferences, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return model.NotificationPreferences{}, err
	}
	if update.Messages != nil {
		prefs.MessagesEnabled = *update.Messages
	}
	if update.Follows != nil {
		prefs.FollowsEnabled = *update.Follows
	}
	if update.Posts != nil {
		prefs.PostsEnabled = *update.Posts
	}
	if update.Likes != nil {
		prefs.LikesEnabled = *update.Likes
	}
	if update.Comments != nil {
		prefs.CommentsEnabled = *update.Comments
	}
	prefs.UpdatedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Save(&prefs).Error; err != nil {
		return model.NotificationPreferences{}, err
	}
	return prefs, nil
}

// RegisterPushToken upserts a device token for the user. Re-registering the
// same (user, token) pair refreshes its device metadata.
func (s *Service) RegisterPushToken(ctx context.Context, userID, token, deviceID, deviceType string) error {
	if token == "" {
		return fmt.Errorf("notify: push token required")
	}
	if deviceType == "" {
		deviceType = "unknown"
	}
	now := s.now().UTC()
	row := model.PushToken{
		UserID:     userID,
		Token:      token,
		DeviceID:   deviceID,
		DeviceType: deviceType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_id", "device_type", "updated_at"}),
	}).Create(&row).Error
}

// RemovePushToken deletes a device token registration.
func (s *Service) RemovePushToken(ctx context.Context, userID, token string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&model.PushToken{}).Error
}
