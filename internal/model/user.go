package model

import "time"

// User is a member profile keyed by the external identity subject. Rows are
// created on the first successful Google token exchange and are never
// hard-deleted outside the admin surface.
type User struct {
	UID                 string  `gorm:"column:uid;primaryKey;size:190;not null"`
	Email               string  `gorm:"column:email;size:320"`
	DisplayName         string  `gorm:"column:display_name;size:190;not null"`
	PhotoURL            string  `gorm:"column:photo_url;size:512"`
	LeoID               *string `gorm:"column:leo_id;size:64"`
	Bio                 string  `gorm:"column:bio;type:text"`
	IsWebmaster         bool    `gorm:"column:is_webmaster;not null;default:false"`
	AssignedClubID      *string `gorm:"column:assigned_club_id;size:190"`
	OnboardingCompleted bool    `gorm:"column:onboarding_completed;not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName exposes the table backing member profiles.
func (User) TableName() string {
	return "users"
}
