package model

import "time"

// Event is club-scoped and carries an RSVP counter maintained in the same
// transaction as the event_rsvps relation write.
type Event struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	ClubID      string    `gorm:"column:club_id;size:190;not null;index"`
	AuthorID    string    `gorm:"column:author_id;size:190;not null;index"`
	Name        string    `gorm:"column:name;size:200;not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	EventDate   time.Time `gorm:"column:event_date;not null;index"`
	ImageURL    string    `gorm:"column:image_url;size:512"`
	RSVPCount   int64     `gorm:"column:rsvp_count;not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Event) TableName() string {
	return "events"
}

type EventRSVP struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	EventID   string `gorm:"column:event_id;size:190;not null;index;uniqueIndex:ux_event_rsvp_pair"`
	UserID    string `gorm:"column:user_id;size:190;not null;uniqueIndex:ux_event_rsvp_pair"`
	CreatedAt time.Time
}

func (EventRSVP) TableName() string {
	return "event_rsvps"
}
