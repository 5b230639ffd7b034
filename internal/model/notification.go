package model

import "time"

// Notification is created only by the fan-out engine and read-toggled by
// its recipient. Payload is free-form JSON describing the trigger.
type Notification struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index:idx_notification_user_time"`
	Type      string    `gorm:"column:type;size:32;not null"`
	Title     string    `gorm:"column:title;size:190;not null"`
	Body      string    `gorm:"column:body;type:text"`
	Payload   string    `gorm:"column:data;type:text"`
	IsRead    bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `gorm:"index:idx_notification_user_time"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationPreferences gates each notification category per user. Rows
// are lazily created with all categories enabled on first read.
type NotificationPreferences struct {
	UserID          string `gorm:"column:user_id;primaryKey;size:190;not null"`
	MessagesEnabled bool   `gorm:"column:messages_enabled;not null;default:true"`
	FollowsEnabled  bool   `gorm:"column:follows_enabled;not null;default:true"`
	PostsEnabled    bool   `gorm:"column:posts_enabled;not null;default:true"`
	LikesEnabled    bool   `gorm:"column:likes_enabled;not null;default:true"`
	CommentsEnabled bool   `gorm:"column:comments_enabled;not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}

// PushToken registers a device for best-effort push delivery.
type PushToken struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"column:user_id;size:190;not null;index;uniqueIndex:ux_push_token_pair"`
	Token      string `gorm:"column:token;size:512;not null;uniqueIndex:ux_push_token_pair"`
	DeviceID   string `gorm:"column:device_id;size:190"`
	DeviceType string `gorm:"column:device_type;size:32;not null;default:unknown"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (PushToken) TableName() string {
	return "push_tokens"
}
