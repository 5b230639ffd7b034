// Package messaging provides direct messages between users: sending,
// conversation summaries, thread retrieval with read tracking, and deletion.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leoconnect/backend/internal/ids"
	"github.com/leoconnect/backend/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxMessageContentLength = 5000

var (
	// ErrMessageNotFound indicates the subject message does not exist.
	ErrMessageNotFound = errors.New("messaging: message not found")
	// ErrRecipientNotFound indicates the receiver is not a known user.
	ErrRecipientNotFound = errors.New("messaging: recipient not found")
	// ErrSelfMessage indicates a user attempted to message themselves.
	ErrSelfMessage = errors.New("messaging: cannot message yourself")
	// ErrForbidden indicates the actor does not own the subject message.
	ErrForbidden = errors.New("messaging: forbidden")
	// ErrInvalidContent indicates missing, empty-after-trim or oversized content.
	ErrInvalidContent = errors.New("messaging: invalid content")
)

// Notifier receives the new-message event for notification fan-out.
type Notifier interface {
	NewMessage(ctx context.Context, sender model.User, receiverID, messageID, preview string)
}

// Directory answers whether a uid belongs to a known user. The user service
// satisfies it with a cached lookup.
type Directory interface {
	Exists(ctx context.Context, uid string) (bool, error)
}

// ServiceConfig describes the dependencies of the messaging service.
type ServiceConfig struct {
	Database  *gorm.DB
	Notifier  Notifier
	Directory Directory
	IDs       ids.Provider
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Service threads direct messages between pairs of users.
type Service struct {
	db        *gorm.DB
	notifier  Notifier
	directory Directory
	ids       ids.Provider
	now       func() time.Time
	logger    *zap.Logger
}

// NewService constructs the messaging service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("messaging: database connection required")
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
		db:        cfg.Database,
		notifier:  cfg.Notifier,
		directory: cfg.Directory,
		ids:       provider,
		now:       clock,
		logger:    logger,
	}, nil
}

// Message is a direct message as exposed to clients.
type Message struct {
	MessageID  string    `json:"messageId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation summarizes a thread with one counterpart: the latest message
// and the viewer's unread count.
type Conversation struct {
	UserID          string    `json:"userId"`
	DisplayName     string    `json:"displayName"`
	PhotoURL        string    `json:"photoUrl"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int64     `json:"unreadCount"`
}

// Send validates and persists a message, then fires the new-message
// notification when the recipient differs from the sender.
func (s *Service) Send(ctx context.Context, sender model.User, receiverID, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("%w: message content cannot be empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(content) > maxMessageContentLength {
		return Message{}, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidContent, maxMessageContentLength)
	}
	if receiverID == sender.UID {
		return Message{}, ErrSelfMessage
	}

	known, err := s.recipientExists(ctx, receiverID)
	if err != nil {
		return Message{}, err
	}
	if !known {
		return Message{}, ErrRecipientNotFound
	}

	messageID, err := s.ids.NewID()
	if err != nil {
		return Message{}, err
	}
	message := model.Message{
		ID:         messageID,
		SenderID:   sender.UID,
		ReceiverID: receiverID,
		Content:    content,
		IsRead:     false,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return Message{}, err
	}

	if s.notifier != nil {
		s.notifier.NewMessage(ctx, sender, receiverID, messageID, previewOf(content))
	}
	return toMessage(message), nil
}

func (s *Service) recipientExists(ctx context.Context, receiverID string) (bool, error) {
	if s.directory != nil {
		return s.directory.Exists(ctx, receiverID)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("uid = ?", receiverID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Conversations folds the viewer's messages into per-counterpart summaries,
// newest activity first. Each summary carries the latest message in either
// direction and the count of messages the viewer has not read.
func (s *Service) Conversations(ctx context.Context, viewerID string) ([]Conversation, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", viewerID, viewerID).
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	order := make([]string, 0)
	summaries := make(map[string]*Conversation)
	for _, message := range messages {
		counterpart := message.SenderID
		if counterpart == viewerID {
			counterpart = message.ReceiverID
		}
		summary, seen := summaries[counterpart]
		if !seen {
			summary = &Conversation{
				UserID:          counterpart,
				LastMessage:     message.Content,
				LastMessageTime: message.CreatedAt,
			}
			summaries[counterpart] = summary
			order = append(order, counterpart)
		}
		if message.ReceiverID == viewerID && !message.IsRead {
			summary.UnreadCount++
		}
	}

	conversations := make([]Conversation, 0, len(order))
	for _, counterpart := range order {
		summary := summaries[counterpart]
		var user model.User
		err := s.db.WithContext(ctx).Select("uid", "display_name", "photo_url").
			Where("uid = ?", counterpart).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		summary.DisplayName = user.DisplayName
		summary.PhotoURL = user.PhotoURL
		conversations = append(conversations, *summary)
	}
	return conversations, nil
}

// Thread returns the full exchange between the viewer and one counterpart in
// chronological order, and marks the counterpart's messages as read. The
// mark-read write is best-effort; a failure is logged and does not block the
// read.
func (s *Service) Thread(ctx context.Context, viewerID, otherID string) ([]Message, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			viewerID, otherID, otherID, viewerID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", otherID, viewerID, false).
		Update("is_read", true).Error
	if err != nil {
		s.logger.Warn("failed to mark conversation read",
			zap.String("viewer", viewerID), zap.String("other", otherID), zap.Error(err))
	}

	thread := make([]Message, 0, len(messages))
	for _, message := range messages {
		thread = append(thread, toMessage(message))
	}
	return thread, nil
}

// UnreadCount returns the total number of unread messages addressed to the
// viewer across all conversations.
func (s *Service) UnreadCount(ctx context.Context, viewerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND is_read = ?", viewerID, false).
		Count(&count).Error
	return count, err
}

// DeleteMessage removes one message. Only the sender may delete.
func (s *Service) DeleteMessage(ctx context.Context, actorID, messageID string) error {
	var message model.Message
	if err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if message.SenderID != actorID {
		return fmt.Errorf("%w: only the sender can delete a message", ErrForbidden)
	}
	return s.db.WithContext(ctx).Where("id = ?", messageID).Delete(&model.Message{}).Error
}

// DeleteConversation removes every message between the viewer and the
// counterpart in both directions.
func (s *Service) DeleteConversation(ctx context.Context, viewerID, otherID string) error {
	return s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			viewerID, otherID, otherID, viewerID).
		Delete(&model.Message{}).Error
}

func toMessage(m model.Message) Message {
	return Message{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= 100 {
		return content
	}
	return string(runes[:100])
}
