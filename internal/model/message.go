package model

import "time"

// Message is append-only except for the read flag, which flips when the
// receiver opens the thread.
type Message struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	SenderID   string    `gorm:"column:sender_id;size:190;not null;index:idx_msg_sender"`
	ReceiverID string    `gorm:"column:receiver_id;size:190;not null;index:idx_msg_receiver"`
	Content    string    `gorm:"column:content;type:text;not null"`
	IsRead     bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt  time.Time `gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}
